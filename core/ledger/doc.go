// Package ledger keeps a relational journal of provider finalization attempts.
//
// Ledger implements reconcile.Journal over GORM, so every acknowledge or
// consume call made by the executor leaves an auditable row, including the
// retries that preceded a success or a rejection.
package ledger
