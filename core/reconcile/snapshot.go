package reconcile

import (
	"slices"
	"time"
)

// Status is what the UI is told about one entitlement.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusPending  Status = "pending"
)

// SnapshotConfig controls snapshot hints.
type SnapshotConfig struct {
	// RetryHintAfter is the number of failed finalization passes after which
	// the snapshot advises the user to try again.
	RetryHintAfter int `mapstructure:"retry_hint_after" default:"2"`
}

// Entitlement is the UI-facing view of one catalog product.
type Entitlement struct {
	ProductID    string      `json:"product_id"`
	Kind         ProductKind `json:"kind"`
	Status       Status      `json:"status"`
	Purchasable  bool        `json:"purchasable"`
	RetryAdvised bool        `json:"retry_advised"`
}

// Snapshot is the published entitlement state of a user.
type Snapshot struct {
	UserID       string        `json:"user_id"`
	Entitlements []Entitlement `json:"entitlements"`
	GeneratedAt  time.Time     `json:"generated_at"`
}

// Entitlement returns the view of productID.
func (s *Snapshot) Entitlement(productID string) (Entitlement, bool) {
	for _, e := range s.Entitlements {
		if e.ProductID == productID {
			return e, true
		}
	}
	return Entitlement{}, false
}

// Active returns the identifiers of active entitlements.
func (s *Snapshot) Active() []string {
	var ids []string
	for _, e := range s.Entitlements {
		if e.Status == StatusActive {
			ids = append(ids, e.ProductID)
		}
	}
	return ids
}

// BuildSnapshot projects records onto the catalog. Products in pending without
// an active record are reported as pending.
func BuildSnapshot(userID string, catalog Catalog, records map[string]*EntitlementRecord, pending []string, cfg SnapshotConfig, now time.Time) *Snapshot {
	snap := &Snapshot{UserID: userID, GeneratedAt: now}
	for _, productID := range catalog.ProductIDs() {
		kind, _ := catalog.Lookup(productID)
		view := Entitlement{ProductID: productID, Kind: kind, Status: StatusInactive}

		rec := records[productID]
		switch {
		case rec != nil && rec.Active:
			view.Status = StatusActive
			view.RetryAdvised = !rec.Finalized && cfg.RetryHintAfter > 0 && rec.FailedPasses >= cfg.RetryHintAfter
		case slices.Contains(pending, productID):
			view.Status = StatusPending
		}
		view.Purchasable = view.Status == StatusInactive
		snap.Entitlements = append(snap.Entitlements, view)
	}
	return snap
}
