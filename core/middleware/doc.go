// Package middleware groups the Fiber middleware used by the HTTP server.
//
//   - rayid: assigns every request a ray id (X-Ray-ID), stored in locals for
//     logger.WithRayID and echoed in the response.
//   - auth: API key check (X-API-Key header or api_key query parameter).
//
// rayid must be registered first so rejected requests are traceable too.
package middleware
