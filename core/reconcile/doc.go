// Package reconcile keeps locally stored entitlements consistent with the
// purchases a billing provider reports, and finalizes every valid purchase
// with the provider exactly once.
//
// # Architecture
//
// The package is split into a pure planning stage and an effectful apply stage:
//
// 1. Reconcile and PlanPass turn purchase reports and stored records into a
// Plan of Effects (persist, acknowledge, consume, noop). Planning performs no
// I/O and is deterministic.
//
// 2. Executor applies a Plan. Each product is a lane; lanes run concurrently,
// effects for one purchase token run in order and stop at the first failure.
// Provider failures are classified as already finalized (success), transient
// (retried with backoff, then FinalizationFailed) or permanent
// (FinalizationRejected, the grant is rolled back).
//
// 3. Orchestrator loads records, plans, applies and publishes a Snapshot. It
// runs at most one pass per user and coalesces concurrent triggers.
//
// Records are stored as JSON through Store over any blobstore.Backing.
//
// # Usage Example
//
//	catalog, _ := reconcile.LoadCatalog("catalog.yaml")
//	store := reconcile.NewStore(blobstore.NewMemory(), "entitlements")
//	exec := reconcile.NewExecutor(store, finalizer, cfg.Finalize, log)
//	orch := reconcile.NewOrchestrator(catalog, store, exec, log,
//	    reconcile.WithPurchaseSource(source))
//
//	report, err := orch.Sync(ctx, "user-1", reconcile.TriggerConnected)
package reconcile
