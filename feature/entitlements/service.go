package entitlements

import (
	"context"
	"errors"
	"fmt"

	"entitlement-manager/core/ledger"
	"entitlement-manager/core/reconcile"

	"go.uber.org/zap"
)

// ErrInvalidBatch is returned for malformed purchase batches.
var ErrInvalidBatch = errors.New("invalid purchase batch")

// ErrNoLedger is returned when attempts are requested without a database.
var ErrNoLedger = errors.New("attempt ledger is not configured")

// AttemptLister reads journaled finalization attempts.
type AttemptLister interface {
	List(ctx context.Context, userID string, limit int) ([]ledger.AttemptRow, error)
}

// Service exposes the orchestrator to HTTP handlers.
type Service struct {
	orch     *reconcile.Orchestrator
	attempts AttemptLister
	logger   *zap.Logger
}

// NewService creates a new entitlements service. attempts may be nil.
func NewService(orch *reconcile.Orchestrator, attempts AttemptLister, logger *zap.Logger) *Service {
	return &Service{orch: orch, attempts: attempts, logger: logger}
}

// Snapshot returns the user's current entitlements.
func (s *Service) Snapshot(ctx context.Context, userID string) (*reconcile.Snapshot, error) {
	return s.orch.CurrentSnapshot(ctx, userID)
}

// Reconcile runs a pass over batch.
func (s *Service) Reconcile(ctx context.Context, userID string, trigger reconcile.Trigger, batch reconcile.Batch) (*reconcile.PassReport, error) {
	if err := ValidateBatch(batch); err != nil {
		return nil, err
	}
	return s.orch.RunPass(ctx, userID, trigger, batch)
}

// Plan returns the effects a pass over batch would apply.
func (s *Service) Plan(ctx context.Context, userID string, batch reconcile.Batch) (*reconcile.Plan, error) {
	if err := ValidateBatch(batch); err != nil {
		return nil, err
	}
	return s.orch.Plan(ctx, userID, batch)
}

// Sync re-queries the provider and runs a full pass.
func (s *Service) Sync(ctx context.Context, userID string, trigger reconcile.Trigger) (*reconcile.PassReport, error) {
	return s.orch.Sync(ctx, userID, trigger)
}

// Update handles a purchase update notification.
func (s *Service) Update(ctx context.Context, userID string, reports []reconcile.PurchaseReport) (*reconcile.PassReport, error) {
	if len(reports) == 0 {
		return nil, fmt.Errorf("%w: no reports", ErrInvalidBatch)
	}
	if err := ValidateBatch(reconcile.UpdateBatch(reports...)); err != nil {
		return nil, err
	}
	return s.orch.HandlePurchaseUpdate(ctx, userID, reports)
}

// Purchase launches the purchase flow and returns the resulting snapshot.
func (s *Service) Purchase(ctx context.Context, userID, productID string) (*reconcile.Snapshot, error) {
	if err := s.orch.LaunchPurchase(ctx, userID, productID); err != nil {
		return nil, err
	}
	return s.orch.CurrentSnapshot(ctx, userID)
}

// ManageURL returns the subscription management link for productID.
func (s *Service) ManageURL(productID string) (string, error) {
	return s.orch.ManageSubscriptionURL(productID)
}

// Attempts lists journaled finalization attempts.
func (s *Service) Attempts(ctx context.Context, userID string, limit int) ([]ledger.AttemptRow, error) {
	if s.attempts == nil {
		return nil, ErrNoLedger
	}
	return s.attempts.List(ctx, userID, limit)
}

// Products returns the catalog.
func (s *Service) Products() []reconcile.Product {
	ids := s.orch.Catalog().ProductIDs()
	products := make([]reconcile.Product, 0, len(ids))
	for _, id := range ids {
		kind, _ := s.orch.Catalog().Lookup(id)
		products = append(products, reconcile.Product{ID: id, Kind: kind})
	}
	return products
}

// ValidateBatch rejects reports the reconciler cannot key.
func ValidateBatch(batch reconcile.Batch) error {
	for i, r := range batch.Reports {
		if r.PurchaseToken == "" {
			return fmt.Errorf("%w: report %d has no purchase token", ErrInvalidBatch, i)
		}
		if len(r.ProductIDs) == 0 {
			return fmt.Errorf("%w: report %s has no product ids", ErrInvalidBatch, r.PurchaseToken)
		}
		switch r.State {
		case reconcile.StatePending, reconcile.StatePurchased, reconcile.StateCancelled:
		default:
			return fmt.Errorf("%w: report %s has unknown state %q", ErrInvalidBatch, r.PurchaseToken, r.State)
		}
	}
	return nil
}
