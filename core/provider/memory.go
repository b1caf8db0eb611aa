package provider

import (
	"context"
	"sort"
	"sync"
	"time"

	"entitlement-manager/core/reconcile"

	"github.com/google/uuid"
)

type purchase struct {
	userID       string
	productID    string
	kind         reconcile.ProductKind
	token        string
	state        reconcile.PurchaseState
	acknowledged bool
	consumed     bool
	orderID      string
	at           time.Time
}

func (p *purchase) report() reconcile.PurchaseReport {
	return reconcile.PurchaseReport{
		ProductIDs:    []string{p.productID},
		PurchaseToken: p.token,
		State:         p.state,
		Acknowledged:  p.acknowledged,
		PurchaseTime:  p.at,
		OrderID:       p.orderID,
	}
}

// UpdateListener receives purchases created or changed by the Memory provider.
type UpdateListener func(ctx context.Context, userID string, reports []reconcile.PurchaseReport)

// Memory is an in-process billing provider. It is safe for concurrent use.
type Memory struct {
	catalog reconcile.Catalog
	now     func() time.Time

	mu        sync.Mutex
	purchases map[string]*purchase
	failures  map[string][]error
	pending   bool
	listener  UpdateListener
}

// NewMemory creates a provider that sells the products of catalog.
func NewMemory(catalog reconcile.Catalog) *Memory {
	return &Memory{
		catalog:   catalog,
		now:       time.Now,
		purchases: make(map[string]*purchase),
		failures:  make(map[string][]error),
	}
}

// OnPurchaseUpdate registers the purchase update listener.
func (m *Memory) OnPurchaseUpdate(l UpdateListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = l
}

// SetPendingPurchases makes new purchases start in the pending state.
func (m *Memory) SetPendingPurchases(pending bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = pending
}

// FailNext makes the next finalization calls for token return errs in order.
func (m *Memory) FailNext(token string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[token] = append(m.failures[token], errs...)
}

// LaunchPurchaseFlow records a new purchase and notifies the update listener.
func (m *Memory) LaunchPurchaseFlow(ctx context.Context, userID, productID string) error {
	kind, ok := m.catalog.Lookup(productID)
	if !ok {
		return reconcile.NewProviderError(reconcile.CodeItemUnavailable, "product %s", productID)
	}

	m.mu.Lock()
	for _, p := range m.purchases {
		if p.userID == userID && p.productID == productID && p.state != reconcile.StateCancelled && !p.consumed {
			m.mu.Unlock()
			return reconcile.NewProviderError(reconcile.CodeItemAlreadyOwned, "product %s", productID)
		}
	}

	p := &purchase{
		userID:    userID,
		productID: productID,
		kind:      kind,
		token:     uuid.NewString(),
		state:     reconcile.StatePurchased,
		orderID:   "GPA." + uuid.NewString()[:8],
		at:        m.now(),
	}
	if m.pending {
		p.state = reconcile.StatePending
	}
	m.purchases[p.token] = p
	report := p.report()
	listener := m.listener
	m.mu.Unlock()

	if listener != nil {
		listener(ctx, userID, []reconcile.PurchaseReport{report})
	}
	return nil
}

// CompletePending moves a pending purchase to purchased and notifies the listener.
func (m *Memory) CompletePending(ctx context.Context, token string) error {
	m.mu.Lock()
	p, ok := m.purchases[token]
	if !ok || p.state != reconcile.StatePending {
		m.mu.Unlock()
		return reconcile.NewProviderError(reconcile.CodeItemNotOwned, "no pending purchase %s", token)
	}
	p.state = reconcile.StatePurchased
	report := p.report()
	listener := m.listener
	m.mu.Unlock()

	if listener != nil {
		listener(ctx, p.userID, []reconcile.PurchaseReport{report})
	}
	return nil
}

// Cancel ends the user's purchase of productID, as when a subscription is cancelled.
func (m *Memory) Cancel(userID, productID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.purchases {
		if p.userID == userID && p.productID == productID {
			p.state = reconcile.StateCancelled
		}
	}
}

// QueryPurchases returns the user's unconsumed, uncancelled purchases of productType.
func (m *Memory) QueryPurchases(ctx context.Context, userID string, productType reconcile.ProductType) ([]reconcile.PurchaseReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, reconcile.NewProviderError(reconcile.CodeServiceTimeout, "%v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var reports []reconcile.PurchaseReport
	for _, p := range m.purchases {
		if p.userID != userID || p.kind.ProductType() != productType || p.consumed || p.state == reconcile.StateCancelled {
			continue
		}
		reports = append(reports, p.report())
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].PurchaseToken < reports[j].PurchaseToken
	})
	return reports, nil
}

// Acknowledge marks the purchase acknowledged.
func (m *Memory) Acknowledge(ctx context.Context, req reconcile.FinalizeRequest) error {
	return m.finalize(req, false)
}

// Consume marks the purchase consumed, which also acknowledges it.
func (m *Memory) Consume(ctx context.Context, req reconcile.FinalizeRequest) error {
	return m.finalize(req, true)
}

func (m *Memory) finalize(req reconcile.FinalizeRequest, consume bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if errs := m.failures[req.Token]; len(errs) > 0 {
		m.failures[req.Token] = errs[1:]
		return errs[0]
	}

	p, ok := m.purchases[req.Token]
	if !ok {
		return reconcile.NewProviderError(reconcile.CodeItemNotOwned, "unknown token %s", req.Token)
	}
	if p.state != reconcile.StatePurchased {
		return reconcile.NewProviderError(reconcile.CodeDeveloperError, "purchase %s is %s", req.Token, p.state)
	}

	if consume {
		if p.consumed {
			return &reconcile.ProviderError{Code: reconcile.CodeAlreadyFinalized, Message: "already consumed"}
		}
		p.consumed = true
		p.acknowledged = true
		return nil
	}
	if p.acknowledged {
		return &reconcile.ProviderError{Code: reconcile.CodeAlreadyFinalized, Message: "already acknowledged"}
	}
	p.acknowledged = true
	return nil
}
