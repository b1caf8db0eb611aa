// Package entitlements exposes the reconciliation engine over HTTP.
//
// # HTTP Endpoints
//
//   - GET  /catalog : Lists products and their lifecycle kind.
//   - GET  /entitlements/:user : Current snapshot (active, inactive, pending).
//   - POST /entitlements/:user/reconcile : Pass over a posted batch (supports ?dry_run=true and ?trigger=).
//   - POST /entitlements/:user/sync : Re-queries the provider and runs a full pass (?trigger=restore by default).
//   - POST /entitlements/:user/updates : Purchase update notification, a partial pass.
//   - POST /entitlements/:user/purchases/:product : Launches the purchase flow.
//   - GET  /entitlements/:user/manage[/:product] : Subscription management link.
//   - GET  /entitlements/:user/attempts : Journaled finalization attempts.
//
// Errors are returned as {"error": "..."}: 400 for malformed batches, 404 for
// unknown products, 409 when a product is not purchasable, 501 when the
// provider or ledger is not configured, 502 for provider failures and 503 when
// the entitlement store is unavailable.
package entitlements
