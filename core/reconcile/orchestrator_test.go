package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"entitlement-manager/core/blobstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orchFixture struct {
	orch      *Orchestrator
	store     *Store
	finalizer *fakeFinalizer
	publisher *recordingPublisher
	source    *fakeSource
	launcher  *fakeLauncher
}

func newOrchFixture(t *testing.T) *orchFixture {
	t.Helper()
	fx := &orchFixture{
		store:     NewStore(blobstore.NewMemory(), "entitlements"),
		finalizer: newFakeFinalizer(),
		publisher: &recordingPublisher{},
		source:    &fakeSource{reports: map[ProductType][]PurchaseReport{}},
		launcher:  &fakeLauncher{},
	}
	exec := NewExecutor(fx.store, fx.finalizer, fastConfig(), nil)
	fx.orch = NewOrchestrator(testCatalog(t), fx.store, exec, nil,
		WithPublisher(fx.publisher),
		WithPurchaseSource(fx.source),
		WithLauncher(fx.launcher),
		WithPackageName("com.example.app"),
	)
	return fx
}

func status(t *testing.T, snap *Snapshot, productID string) Status {
	t.Helper()
	view, ok := snap.Entitlement(productID)
	require.True(t, ok, productID)
	return view.Status
}

func TestOrchestrator_RunPassPublishesSnapshot(t *testing.T) {
	ctx := context.Background()
	fx := newOrchFixture(t)

	pending := purchased("t1", "tokP", t0)
	pending.State = StatePending

	report, err := fx.orch.RunPass(ctx, "u1", TriggerManual, FullBatch(
		purchased("remove_ads", "tok1", t0),
		purchased("standard_sub", "tokS", t0),
		pending,
	))
	require.NoError(t, err)
	assert.Equal(t, TriggerManual, report.Trigger)
	assert.False(t, report.Coalesced)

	snap := fx.publisher.Last()
	require.NotNil(t, snap)
	assert.Same(t, report.Snapshot, snap)
	assert.Equal(t, StatusActive, status(t, snap, "remove_ads"))
	assert.Equal(t, StatusActive, status(t, snap, "standard_sub"))
	assert.Equal(t, StatusPending, status(t, snap, "t1"))
	assert.ElementsMatch(t, []string{"remove_ads", "standard_sub"}, snap.Active())

	current, err := fx.orch.CurrentSnapshot(ctx, "u1")
	require.NoError(t, err)
	assert.Same(t, snap, current)
}

func TestOrchestrator_OneTimeIsPermanent(t *testing.T) {
	ctx := context.Background()
	fx := newOrchFixture(t)

	_, err := fx.orch.RunPass(ctx, "u1", TriggerManual, FullBatch(purchased("remove_ads", "tok1", t0)))
	require.NoError(t, err)

	cancelled := purchased("remove_ads", "tok1", t0)
	cancelled.State = StateCancelled
	for _, batch := range []Batch{FullBatch(), FullBatch(cancelled), UpdateBatch()} {
		report, err := fx.orch.RunPass(ctx, "u1", TriggerResume, batch)
		require.NoError(t, err)
		assert.Equal(t, StatusActive, status(t, report.Snapshot, "remove_ads"))
	}
}

func TestOrchestrator_SubscriptionLapse(t *testing.T) {
	ctx := context.Background()
	fx := newOrchFixture(t)
	fx.source.reports[TypeSubs] = []PurchaseReport{purchased("standard_sub", "tokS", t0)}

	report, err := fx.orch.Sync(ctx, "u1", TriggerConnected)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, status(t, report.Snapshot, "standard_sub"))

	// A purchase update does not represent every subscription.
	report, err = fx.orch.HandlePurchaseUpdate(ctx, "u1", []PurchaseReport{purchased("remove_ads", "tok1", t0)})
	require.NoError(t, err)
	assert.Equal(t, StatusActive, status(t, report.Snapshot, "standard_sub"))

	fx.source.reports[TypeSubs] = nil
	report, err = fx.orch.Sync(ctx, "u1", TriggerRestore)
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, status(t, report.Snapshot, "standard_sub"))
	assert.Equal(t, StatusActive, status(t, report.Snapshot, "remove_ads"))

	ok, err := fx.orch.CanPurchase(ctx, "u1", "standard_sub")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOrchestrator_ConsumableReEligible(t *testing.T) {
	ctx := context.Background()
	fx := newOrchFixture(t)

	_, err := fx.orch.HandlePurchaseUpdate(ctx, "u1", []PurchaseReport{purchased("t1", "tok2", t0)})
	require.NoError(t, err)

	ok, err := fx.orch.CanPurchase(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, fx.orch.LaunchPurchase(ctx, "u1", "t1"))

	_, err = fx.orch.HandlePurchaseUpdate(ctx, "u1", []PurchaseReport{purchased("t1", "tok3", t0.Add(time.Minute))})
	require.NoError(t, err)
	assert.Equal(t, []string{"consume:tok2", "consume:tok3"}, fx.finalizer.Calls())
	assert.Equal(t, []string{"u1/t1"}, fx.launcher.launched)
}

func TestOrchestrator_LaunchPurchaseRefusesOwnedProduct(t *testing.T) {
	ctx := context.Background()
	fx := newOrchFixture(t)

	_, err := fx.orch.RunPass(ctx, "u1", TriggerManual, UpdateBatch(purchased("remove_ads", "tok1", t0)))
	require.NoError(t, err)

	err = fx.orch.LaunchPurchase(ctx, "u1", "remove_ads")
	assert.ErrorIs(t, err, ErrNotPurchasable)

	err = fx.orch.LaunchPurchase(ctx, "u1", "ghost")
	assert.ErrorIs(t, err, ErrUnknownProduct)
	assert.Empty(t, fx.launcher.launched)
}

func TestOrchestrator_RetryAdvised(t *testing.T) {
	ctx := context.Background()
	fx := newOrchFixture(t)
	fx.finalizer.final["tok1"] = NewProviderError(CodeServiceTimeout, "slow")

	batch := FullBatch(purchased("remove_ads", "tok1", t0))

	report, err := fx.orch.RunPass(ctx, "u1", TriggerManual, batch)
	require.NoError(t, err)
	view, _ := report.Snapshot.Entitlement("remove_ads")
	assert.Equal(t, StatusActive, view.Status)
	assert.False(t, view.RetryAdvised)

	report, err = fx.orch.RunPass(ctx, "u1", TriggerManual, batch)
	require.NoError(t, err)
	view, _ = report.Snapshot.Entitlement("remove_ads")
	assert.True(t, view.RetryAdvised)

	// A later successful finalization clears the hint.
	delete(fx.finalizer.final, "tok1")
	report, err = fx.orch.RunPass(ctx, "u1", TriggerManual, batch)
	require.NoError(t, err)
	view, _ = report.Snapshot.Entitlement("remove_ads")
	assert.False(t, view.RetryAdvised)
}

func TestOrchestrator_CoalescesConcurrentTriggers(t *testing.T) {
	ctx := context.Background()
	fx := newOrchFixture(t)
	fx.finalizer.block = make(chan struct{})
	fx.finalizer.entered = make(chan struct{}, 1)

	batch := FullBatch(purchased("remove_ads", "tok1", t0))

	var (
		wg      sync.WaitGroup
		leader  *PassReport
		joined  *PassReport
		errLead error
		errJoin error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		leader, errLead = fx.orch.RunPass(ctx, "u1", TriggerConnected, batch)
	}()
	<-fx.finalizer.entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		joined, errJoin = fx.orch.RunPass(ctx, "u1", TriggerResume, batch)
	}()
	// Give the second trigger time to join the in-flight pass.
	time.Sleep(50 * time.Millisecond)
	close(fx.finalizer.block)
	wg.Wait()

	require.NoError(t, errLead)
	require.NoError(t, errJoin)
	assert.False(t, leader.Coalesced)
	assert.True(t, joined.Coalesced)
	assert.Equal(t, []string{"ack:tok1"}, fx.finalizer.Calls())
}

func TestOrchestrator_SyncErrors(t *testing.T) {
	ctx := context.Background()
	fx := newOrchFixture(t)
	fx.source.err = NewProviderError(CodeServiceDisconnected, "")

	_, err := fx.orch.Sync(ctx, "u1", TriggerConnected)
	require.Error(t, err)
	var pe *ProviderError
	assert.True(t, errors.As(err, &pe))

	bare := NewOrchestrator(testCatalog(t), fx.store, nil, nil)
	_, err = bare.Sync(ctx, "u1", TriggerConnected)
	assert.ErrorIs(t, err, ErrNoProvider)
	assert.ErrorIs(t, bare.LaunchPurchase(ctx, "u1", "t1"), ErrNoProvider)
}

func TestOrchestrator_PlanIsSideEffectFree(t *testing.T) {
	ctx := context.Background()
	fx := newOrchFixture(t)

	plan, err := fx.orch.Plan(ctx, "u1", FullBatch(purchased("remove_ads", "tok1", t0)))
	require.NoError(t, err)
	assert.True(t, plan.HasWork())
	assert.Empty(t, fx.finalizer.Calls())

	rec, err := fx.store.Get(ctx, "u1", "remove_ads")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Nil(t, fx.publisher.Last())
}

func TestOrchestrator_ManageSubscriptionURL(t *testing.T) {
	fx := newOrchFixture(t)

	link, err := fx.orch.ManageSubscriptionURL("")
	require.NoError(t, err)
	assert.Equal(t, "https://play.google.com/store/account/subscriptions", link)

	link, err = fx.orch.ManageSubscriptionURL("standard_sub")
	require.NoError(t, err)
	assert.Equal(t, "https://play.google.com/store/account/subscriptions?sku=standard_sub&package=com.example.app", link)

	_, err = fx.orch.ManageSubscriptionURL("remove_ads")
	assert.ErrorIs(t, err, ErrNotSubscription)
	_, err = fx.orch.ManageSubscriptionURL("ghost")
	assert.True(t, IsUnknownProduct(err))
}

func TestOrchestrator_StorageFailure(t *testing.T) {
	ctx := context.Background()
	backing := &failingBacking{Memory: blobstore.NewMemory(), failPuts: true}
	store := NewStore(backing, "")
	orch := NewOrchestrator(testCatalog(t), store, NewExecutor(store, newFakeFinalizer(), fastConfig(), nil), nil)

	report, err := orch.RunPass(ctx, "u1", TriggerManual, FullBatch(purchased("remove_ads", "tok1", t0)))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)
	require.NotNil(t, report)
	require.NotNil(t, report.Snapshot)
	assert.Equal(t, StatusInactive, status(t, report.Snapshot, "remove_ads"))
}

func TestOrchestrator_ZeroBatchLapsesSubscription(t *testing.T) {
	ctx := context.Background()
	fx := newOrchFixture(t)
	fx.source.reports[TypeSubs] = []PurchaseReport{purchased("standard_sub", "tokOld", t0)}

	_, err := fx.orch.Sync(ctx, "u1", TriggerConnected)
	require.NoError(t, err)

	report, err := fx.orch.RunPass(ctx, "u1", TriggerManual, Batch{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Plan.Lapses)
	assert.Equal(t, StatusInactive, status(t, report.Snapshot, "standard_sub"))

	rec, err := fx.store.Get(ctx, "u1", "standard_sub")
	require.NoError(t, err)
	assert.False(t, rec.Active)
}

func TestOrchestrator_AcknowledgedReportRecoversRejectedGrant(t *testing.T) {
	ctx := context.Background()
	fx := newOrchFixture(t)
	fx.finalizer.script["tokR"] = []error{NewProviderError(CodeDeveloperError, "bad request")}

	report, err := fx.orch.RunPass(ctx, "u1", TriggerManual, FullBatch(purchased("remove_ads", "tokR", t0)))
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, status(t, report.Snapshot, "remove_ads"))
	assert.Equal(t, 1, report.Count(OutcomeRejected))

	// The same token still unacknowledged stays rejected.
	report, err = fx.orch.RunPass(ctx, "u1", TriggerManual, FullBatch(purchased("remove_ads", "tokR", t0)))
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, status(t, report.Snapshot, "remove_ads"))

	delivered := purchased("remove_ads", "tokR", t0)
	delivered.Acknowledged = true
	report, err = fx.orch.RunPass(ctx, "u1", TriggerResume, FullBatch(delivered))
	require.NoError(t, err)
	assert.Equal(t, StatusActive, status(t, report.Snapshot, "remove_ads"))

	rec, err := fx.store.Get(ctx, "u1", "remove_ads")
	require.NoError(t, err)
	assert.True(t, rec.Active)
	assert.True(t, rec.Finalized)
	assert.False(t, rec.Rejected)
}

// joiningGroup reports the first joins calls as joined to another pass
// without running them, then runs every later call.
type joiningGroup struct {
	mu     sync.Mutex
	joins  int
	calls  int
	shared *PassReport
}

func (g *joiningGroup) Do(key string, fn func() (any, error)) (any, error, bool) {
	g.mu.Lock()
	g.calls++
	join := g.calls <= g.joins
	g.mu.Unlock()
	if join {
		return g.shared, nil, true
	}
	v, err := fn()
	return v, err, false
}

func TestOrchestrator_PurchaseUpdateReplaysUntilItRuns(t *testing.T) {
	ctx := context.Background()
	fx := newOrchFixture(t)
	group := &joiningGroup{joins: 2, shared: &PassReport{UserID: "u1", Trigger: TriggerRestore}}
	fx.orch.passes = group

	report, err := fx.orch.HandlePurchaseUpdate(ctx, "u1", []PurchaseReport{purchased("remove_ads", "tok1", t0)})
	require.NoError(t, err)
	assert.False(t, report.Coalesced)
	assert.Equal(t, 3, group.calls)
	assert.Equal(t, []string{"ack:tok1"}, fx.finalizer.Calls())
	assert.Equal(t, StatusActive, status(t, report.Snapshot, "remove_ads"))
}

func TestOrchestrator_PurchaseUpdateReplayStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fx := newOrchFixture(t)
	fx.orch.passes = &joiningGroup{joins: 1, shared: &PassReport{UserID: "u1"}}

	report, err := fx.orch.HandlePurchaseUpdate(ctx, "u1", []PurchaseReport{purchased("remove_ads", "tok1", t0)})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.True(t, report.Coalesced)
	assert.Empty(t, fx.finalizer.Calls())
}
