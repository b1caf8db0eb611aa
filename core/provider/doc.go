// Package provider implements the billing provider collaborators used by the
// reconcile package.
//
//   - Memory is an in-process store that behaves like the client billing
//     library: launching a flow creates a purchase, purchases can be
//     acknowledged or consumed once, and failures can be injected.
//   - PlayStore finalizes purchases through the Google Play Developer API.
//   - Guard wraps any Finalizer with a rate limiter and a circuit breaker.
package provider
