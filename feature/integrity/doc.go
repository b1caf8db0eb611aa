// Package integrity provides health checks for the infrastructure the
// entitlement engine depends on.
//
// # Checks Provided
//
//   - Bucket: the object store bucket used by the minio backing exists (supports fix).
//   - Schema: the entitlement_blobs and entitlement_attempts tables match their
//     GORM models, column by column (supports fix through AutoMigrate).
//   - Catalog: every product has a valid lifecycle kind.
//   - Redis: the server used by the redis backing or publisher answers PING.
//
// Checks whose dependency is not configured report "skipped" in the combined
// report and 501 on their own endpoint.
//
// # HTTP Endpoints
//
//   - GET /integrity : Runs all checks.
//   - GET /integrity/bucket : Bucket check (supports ?fix=true).
//   - GET /integrity/schema : Schema check (supports ?fix=true).
//   - GET /integrity/catalog : Catalog check.
//   - GET /integrity/redis : Redis ping.
package integrity
