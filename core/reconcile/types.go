package reconcile

import "time"

// ProductKind is the lifecycle of a product.
type ProductKind string

const (
	// KindOneTime grants a permanent entitlement that is never re-purchasable.
	KindOneTime ProductKind = "one_time"
	// KindSubscription grants an entitlement while the subscription is active.
	KindSubscription ProductKind = "subscription"
	// KindConsumable grants a one-shot effect that must be consumed before re-purchase.
	KindConsumable ProductKind = "consumable"
)

// Valid reports whether k is a known kind.
func (k ProductKind) Valid() bool {
	switch k {
	case KindOneTime, KindSubscription, KindConsumable:
		return true
	default:
		return false
	}
}

// ProductType returns the provider query type that reports purchases of this kind.
func (k ProductKind) ProductType() ProductType {
	if k == KindSubscription {
		return TypeSubs
	}
	return TypeInApp
}

// ProductType is the provider's purchase query category.
type ProductType string

const (
	// TypeInApp covers one-time and consumable products.
	TypeInApp ProductType = "inapp"
	// TypeSubs covers subscriptions.
	TypeSubs ProductType = "subs"
)

// PurchaseState is the provider-reported state of a purchase.
type PurchaseState string

const (
	StatePending   PurchaseState = "pending"
	StatePurchased PurchaseState = "purchased"
	StateCancelled PurchaseState = "cancelled"
)

// PurchaseReport is one purchase as reported by the provider.
// PurchaseToken is the sole idempotency key: two reports with the same token
// describe the same transaction.
type PurchaseReport struct {
	ProductIDs    []string      `json:"product_ids"`
	PurchaseToken string        `json:"purchase_token"`
	State         PurchaseState `json:"state"`
	Acknowledged  bool          `json:"acknowledged"`
	PurchaseTime  time.Time     `json:"purchase_time"`
	OrderID       string        `json:"order_id,omitempty"`
}

// EntitlementRecord is the durable projection of what a user owns for one product.
// Only the Executor writes records.
type EntitlementRecord struct {
	UserID        string      `json:"user_id"`
	ProductID     string      `json:"product_id"`
	Kind          ProductKind `json:"kind"`
	PurchaseToken string      `json:"purchase_token"`
	// GrantedAt orders grants. It is the purchase time of the granting report.
	GrantedAt time.Time `json:"granted_at"`
	Active    bool      `json:"active"`
	Finalized bool      `json:"finalized"`
	Consumed  bool      `json:"consumed"`
	// Rejected is set when the provider permanently refused finalization of PurchaseToken.
	Rejected bool `json:"rejected,omitempty"`
	// FailedPasses counts consecutive passes whose finalization of PurchaseToken failed.
	FailedPasses int `json:"failed_passes"`
}

// Clone returns a copy of r, or nil.
func (r *EntitlementRecord) Clone() *EntitlementRecord {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// EffectType identifies an Effect.
type EffectType string

const (
	EffectPersist     EffectType = "persist"
	EffectAcknowledge EffectType = "acknowledge"
	EffectConsume     EffectType = "consume"
	EffectNoop        EffectType = "noop"
)

// Effect is one planned state change. Effects are values; the Executor applies them.
type Effect struct {
	Type      EffectType         `json:"type"`
	ProductID string             `json:"product_id"`
	Kind      ProductKind        `json:"kind"`
	Token     string             `json:"token,omitempty"`
	Record    *EntitlementRecord `json:"record,omitempty"`
	Reason    string             `json:"reason,omitempty"`
}

// Persist writes rec through to the store.
func Persist(rec *EntitlementRecord, reason string) Effect {
	return Effect{
		Type:      EffectPersist,
		ProductID: rec.ProductID,
		Kind:      rec.Kind,
		Token:     rec.PurchaseToken,
		Record:    rec,
		Reason:    reason,
	}
}

// Acknowledge finalizes token without consuming it.
func Acknowledge(productID string, kind ProductKind, token string) Effect {
	return Effect{Type: EffectAcknowledge, ProductID: productID, Kind: kind, Token: token}
}

// Consume finalizes token and clears the entitlement.
func Consume(productID string, token string) Effect {
	return Effect{Type: EffectConsume, ProductID: productID, Kind: KindConsumable, Token: token}
}

// Noop records that nothing needs to happen for token.
func Noop(productID string, kind ProductKind, token, reason string) Effect {
	return Effect{Type: EffectNoop, ProductID: productID, Kind: kind, Token: token, Reason: reason}
}

// IsFinalization reports whether the effect calls the provider.
func (e Effect) IsFinalization() bool {
	return e.Type == EffectAcknowledge || e.Type == EffectConsume
}

// Batch is the input of one reconciliation pass. Unless Partial is set it holds
// every purchase the provider knows for the user, so an active subscription
// missing from it has lapsed.
type Batch struct {
	Reports []PurchaseReport `json:"reports"`
	// Partial marks a batch carrying only some purchases, such as a purchase
	// update notification. Partial batches never lapse subscriptions.
	Partial bool `json:"partial,omitempty"`
}

// FullBatch holds every known purchase.
func FullBatch(reports ...PurchaseReport) Batch {
	return Batch{Reports: reports}
}

// UpdateBatch is a partial batch, such as a purchase update notification.
func UpdateBatch(reports ...PurchaseReport) Batch {
	return Batch{Reports: reports, Partial: true}
}

// IsComplete reports whether the batch represents every known purchase.
func (b Batch) IsComplete() bool {
	return !b.Partial
}

// Trigger names what started a pass.
type Trigger string

const (
	TriggerConnected      Trigger = "connected"
	TriggerResume         Trigger = "resume"
	TriggerRestore        Trigger = "restore"
	TriggerPurchaseUpdate Trigger = "purchase_update"
	TriggerManual         Trigger = "manual"
)

// ParseTrigger validates a trigger name.
func ParseTrigger(s string) (Trigger, bool) {
	switch t := Trigger(s); t {
	case TriggerConnected, TriggerResume, TriggerRestore, TriggerPurchaseUpdate, TriggerManual:
		return t, true
	default:
		return "", false
	}
}
