package reconcile

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const subscriptionCenterURL = "https://play.google.com/store/account/subscriptions"

// Orchestrator drives reconciliation passes for users. At most one pass runs
// per user; triggers that arrive while a pass is in flight join it.
type Orchestrator struct {
	catalog   Catalog
	store     *Store
	executor  *Executor
	log       *zap.Logger
	source    PurchaseSource
	launcher  PurchaseLauncher
	publisher SnapshotPublisher
	metrics   *Metrics
	cfg       SnapshotConfig
	pkg       string
	now       func() time.Time

	passes passGroup

	mu        sync.RWMutex
	snapshots map[string]*Snapshot
}

// passGroup runs at most one function per key; *singleflight.Group implements it.
type passGroup interface {
	Do(key string, fn func() (any, error)) (any, error, bool)
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithPurchaseSource enables Sync.
func WithPurchaseSource(src PurchaseSource) OrchestratorOption {
	return func(o *Orchestrator) { o.source = src }
}

// WithLauncher enables LaunchPurchase.
func WithLauncher(l PurchaseLauncher) OrchestratorOption {
	return func(o *Orchestrator) { o.launcher = l }
}

// WithPublisher publishes every snapshot built after a pass.
func WithPublisher(p SnapshotPublisher) OrchestratorOption {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithSnapshotConfig sets the snapshot hint thresholds.
func WithSnapshotConfig(cfg SnapshotConfig) OrchestratorOption {
	return func(o *Orchestrator) { o.cfg = cfg }
}

// WithPackageName sets the application package used in subscription links.
func WithPackageName(pkg string) OrchestratorOption {
	return func(o *Orchestrator) { o.pkg = pkg }
}

// WithPassMetrics counts passes in m.
func WithPassMetrics(m *Metrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(catalog Catalog, store *Store, executor *Executor, log *zap.Logger, opts ...OrchestratorOption) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	o := &Orchestrator{
		catalog:   catalog,
		store:     store,
		executor:  executor,
		log:       log,
		cfg:       SnapshotConfig{RetryHintAfter: 2},
		now:       time.Now,
		passes:    &singleflight.Group{},
		snapshots: make(map[string]*Snapshot),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Catalog returns the product catalog.
func (o *Orchestrator) Catalog() Catalog { return o.catalog }

// RunPass reconciles batch for userID and publishes the resulting snapshot.
func (o *Orchestrator) RunPass(ctx context.Context, userID string, trigger Trigger, batch Batch) (*PassReport, error) {
	return o.coalesce(ctx, userID, trigger, func(ctx context.Context) (*PassReport, error) {
		return o.runPass(ctx, userID, trigger, batch)
	})
}

// Sync queries the provider for every product type and runs a full pass.
func (o *Orchestrator) Sync(ctx context.Context, userID string, trigger Trigger) (*PassReport, error) {
	if o.source == nil {
		return nil, fmt.Errorf("sync: %w", ErrNoProvider)
	}
	return o.coalesce(ctx, userID, trigger, func(ctx context.Context) (*PassReport, error) {
		var reports []PurchaseReport
		for _, t := range []ProductType{TypeInApp, TypeSubs} {
			found, err := o.source.QueryPurchases(ctx, userID, t)
			if err != nil {
				return nil, fmt.Errorf("failed to query %s purchases: %w", t, err)
			}
			reports = append(reports, found...)
		}
		return o.runPass(ctx, userID, trigger, FullBatch(reports...))
	})
}

// HandlePurchaseUpdate runs a partial pass for reports delivered by a purchase
// update. Partial passes never lapse subscriptions. An update that lands on an
// in-flight pass is replayed until it runs in a pass of its own.
func (o *Orchestrator) HandlePurchaseUpdate(ctx context.Context, userID string, reports []PurchaseReport) (*PassReport, error) {
	report, err := o.RunPass(ctx, userID, TriggerPurchaseUpdate, UpdateBatch(reports...))
	for err == nil && report.Coalesced {
		if cerr := ctx.Err(); cerr != nil {
			return report, cerr
		}
		report, err = o.RunPass(ctx, userID, TriggerPurchaseUpdate, UpdateBatch(reports...))
	}
	return report, err
}

// Plan returns what a pass over batch would do, without side effects.
func (o *Orchestrator) Plan(ctx context.Context, userID string, batch Batch) (*Plan, error) {
	records, err := o.store.Load(ctx, userID, o.catalog.ProductIDs())
	if err != nil {
		return nil, err
	}
	return PlanPass(userID, batch, records, o.catalog), nil
}

// CurrentSnapshot returns the last published snapshot, or one built from the store.
func (o *Orchestrator) CurrentSnapshot(ctx context.Context, userID string) (*Snapshot, error) {
	o.mu.RLock()
	snap, ok := o.snapshots[userID]
	o.mu.RUnlock()
	if ok {
		return snap, nil
	}

	records, err := o.store.Load(ctx, userID, o.catalog.ProductIDs())
	if err != nil {
		return nil, err
	}
	return BuildSnapshot(userID, o.catalog, records, nil, o.cfg, o.now()), nil
}

// CanPurchase reports whether productID may be bought by userID right now.
func (o *Orchestrator) CanPurchase(ctx context.Context, userID, productID string) (bool, error) {
	if _, ok := o.catalog.Lookup(productID); !ok {
		return false, unknownProduct(userID, productID, "")
	}
	snap, err := o.CurrentSnapshot(ctx, userID)
	if err != nil {
		return false, err
	}
	view, _ := snap.Entitlement(productID)
	return view.Purchasable, nil
}

// LaunchPurchase starts the provider purchase flow for a purchasable product.
func (o *Orchestrator) LaunchPurchase(ctx context.Context, userID, productID string) error {
	if o.launcher == nil {
		return fmt.Errorf("launch purchase: %w", ErrNoProvider)
	}
	ok, err := o.CanPurchase(ctx, userID, productID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", productID, ErrNotPurchasable)
	}
	return o.launcher.LaunchPurchaseFlow(ctx, userID, productID)
}

// ManageSubscriptionURL returns the store page where the user manages
// productID. An empty productID links to the subscription list.
func (o *Orchestrator) ManageSubscriptionURL(productID string) (string, error) {
	if productID == "" {
		return subscriptionCenterURL, nil
	}
	kind, ok := o.catalog.Lookup(productID)
	if !ok {
		return "", unknownProduct("", productID, "")
	}
	if kind != KindSubscription {
		return "", fmt.Errorf("product %s is a %s: %w", productID, kind, ErrNotSubscription)
	}
	return fmt.Sprintf("%s?sku=%s&package=%s", subscriptionCenterURL, url.QueryEscape(productID), url.QueryEscape(o.pkg)), nil
}

func (o *Orchestrator) coalesce(ctx context.Context, userID string, trigger Trigger, fn func(ctx context.Context) (*PassReport, error)) (*PassReport, error) {
	led := false
	v, err, _ := o.passes.Do(userID, func() (any, error) {
		led = true
		return fn(ctx)
	})

	report, _ := v.(*PassReport)
	if led || report == nil {
		return report, err
	}

	o.log.Debug("Pass coalesced into in-flight pass",
		zap.String("user_id", userID),
		zap.String("trigger", string(trigger)),
	)
	joined := *report
	joined.Coalesced = true
	return &joined, err
}

func (o *Orchestrator) runPass(ctx context.Context, userID string, trigger Trigger, batch Batch) (*PassReport, error) {
	started := o.now()
	done := o.metrics.passStarted(ctx, trigger)
	defer done()

	log := o.log.With(zap.String("user_id", userID), zap.String("trigger", string(trigger)))
	log.Info("Reconciliation pass started", zap.Int("reports", len(batch.Reports)))

	records, err := o.store.Load(ctx, userID, o.catalog.ProductIDs())
	if err != nil {
		log.Error("Failed to load entitlements", zap.Error(err))
		return nil, err
	}

	plan := PlanPass(userID, batch, records, o.catalog)
	for _, perr := range plan.Errors {
		log.Warn("Skipping unknown product", zap.String("product_id", perr.ProductID), zap.String("token", perr.Token))
	}

	report, applyErr := o.executor.Apply(ctx, plan)
	report.Trigger = trigger
	report.StartedAt = started

	// The store reflects every fully applied effect, so the snapshot is rebuilt even after an abort.
	snap, snapErr := o.refreshSnapshot(context.WithoutCancel(ctx), userID, plan.Pending)
	if snapErr != nil {
		log.Error("Failed to rebuild snapshot", zap.Error(snapErr))
	}
	report.Snapshot = snap
	report.FinishedAt = o.now()

	fields := []zap.Field{
		zap.Int("effects", len(report.Results)),
		zap.Int("failed", report.Count(OutcomeFailed)+report.Count(OutcomeRejected)),
		zap.Int("skipped", report.Count(OutcomeSkipped)),
		zap.Duration("duration", report.FinishedAt.Sub(started)),
	}
	if applyErr != nil {
		log.Error("Reconciliation pass aborted", append(fields, zap.Error(applyErr))...)
		return report, applyErr
	}
	log.Info("Reconciliation pass finished", fields...)
	return report, nil
}

func (o *Orchestrator) refreshSnapshot(ctx context.Context, userID string, pending []string) (*Snapshot, error) {
	records, err := o.store.Load(ctx, userID, o.catalog.ProductIDs())
	if err != nil {
		return nil, err
	}
	snap := BuildSnapshot(userID, o.catalog, records, pending, o.cfg, o.now())

	o.mu.Lock()
	o.snapshots[userID] = snap
	o.mu.Unlock()

	if o.publisher != nil {
		if err := o.publisher.Publish(ctx, snap); err != nil {
			o.log.Warn("Failed to publish snapshot", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return snap, nil
}

// IsUnknownProduct reports whether err is a catalog miss.
func IsUnknownProduct(err error) bool {
	return errors.Is(err, ErrUnknownProduct)
}
