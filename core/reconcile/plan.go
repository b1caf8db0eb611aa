package reconcile

import (
	"errors"
	"fmt"
	"sort"
)

// Sequence is the ordered effects for one purchase token within a product.
// The Executor stops a sequence at its first failure.
type Sequence struct {
	Token   string   `json:"token"`
	Effects []Effect `json:"effects"`
}

// Lane holds every sequence for one product. Lanes are independent of each other.
type Lane struct {
	ProductID string      `json:"product_id"`
	Kind      ProductKind `json:"kind"`
	Sequences []Sequence  `json:"sequences"`
}

func (l Lane) effects() []Effect {
	var effects []Effect
	for _, seq := range l.Sequences {
		effects = append(effects, seq.Effects...)
	}
	return effects
}

func (l *Lane) add(token string, effects ...Effect) {
	for i := range l.Sequences {
		if l.Sequences[i].Token == token {
			l.Sequences[i].Effects = append(l.Sequences[i].Effects, effects...)
			return
		}
	}
	l.Sequences = append(l.Sequences, Sequence{Token: token, Effects: effects})
}

// Plan is the pure output of a reconciliation pass. It performs no I/O.
type Plan struct {
	UserID  string      `json:"user_id"`
	Lanes   []Lane      `json:"lanes"`
	Errors  []*Error    `json:"errors,omitempty"`
	Summary PlanSummary `json:"summary"`
	// Pending lists products with a pending purchase in the batch.
	Pending []string `json:"pending,omitempty"`
}

// PlanSummary provides aggregate counts for a plan.
type PlanSummary struct {
	Reports         int `json:"reports"`
	Persists        int `json:"persists"`
	Acknowledges    int `json:"acknowledges"`
	Consumes        int `json:"consumes"`
	Noops           int `json:"noops"`
	Lapses          int `json:"lapses"`
	UnknownProducts int `json:"unknown_products"`
}

// Effects flattens the plan in lane order.
func (p *Plan) Effects() []Effect {
	var effects []Effect
	for _, lane := range p.Lanes {
		effects = append(effects, lane.effects()...)
	}
	return effects
}

// HasWork reports whether applying the plan would change anything.
func (p *Plan) HasWork() bool {
	for _, eff := range p.Effects() {
		if eff.Type != EffectNoop {
			return true
		}
	}
	return false
}

// Reconcile decides the effects for one product of one report. It is pure:
// the same inputs always produce the same effects.
func Reconcile(userID, productID string, report PurchaseReport, existing *EntitlementRecord, kind ProductKind) []Effect {
	token := report.PurchaseToken

	if report.State != StatePurchased {
		return []Effect{Noop(productID, kind, token, fmt.Sprintf("purchase is %s", report.State))}
	}

	if existing != nil && existing.PurchaseToken == token {
		switch {
		case existing.Consumed:
			return []Effect{Noop(productID, kind, token, "token already consumed")}
		case existing.Rejected && !report.Acknowledged:
			// An acknowledged report proves the purchase was delivered, so it regrants.
			return []Effect{Noop(productID, kind, token, "token rejected by provider")}
		case report.Acknowledged && existing.Active:
			return []Effect{Noop(productID, kind, token, "already finalized")}
		}
	}

	var effects []Effect

	// A report older than the active grant of another token only needs finalization.
	stale := existing != nil && existing.Active && existing.PurchaseToken != token &&
		existing.GrantedAt.After(report.PurchaseTime)
	if !stale {
		rec := &EntitlementRecord{
			UserID:        userID,
			ProductID:     productID,
			Kind:          kind,
			PurchaseToken: token,
			GrantedAt:     report.PurchaseTime,
			Active:        true,
		}
		if existing != nil && existing.PurchaseToken == token {
			rec.FailedPasses = existing.FailedPasses
		}
		effects = append(effects, Persist(rec, "grant"))
	}

	if kind == KindConsumable {
		effects = append(effects, Consume(productID, token))
	} else {
		effects = append(effects, Acknowledge(productID, kind, token))
	}
	return effects
}

// ReconcileReport reconciles every identifier of a report in identifier order.
// Unknown identifiers produce an UnknownProduct error and no effects; the others continue.
func ReconcileReport(userID string, report PurchaseReport, records map[string]*EntitlementRecord, catalog Catalog) ([]Effect, error) {
	var (
		effects []Effect
		errs    []error
	)
	for _, productID := range report.ProductIDs {
		kind, ok := catalog.Lookup(productID)
		if !ok {
			errs = append(errs, unknownProduct(userID, productID, report.PurchaseToken))
			continue
		}
		effects = append(effects, Reconcile(userID, productID, report, records[productID], kind)...)
	}
	return effects, errors.Join(errs...)
}

type pendingReport struct {
	productID string
	kind      ProductKind
	report    PurchaseReport
}

// PlanPass plans a full pass for userID. Reports are folded per product in
// purchase time order against a working copy of records, so later reports
// observe earlier grants. Active subscriptions with no purchased report are
// lapsed unless the batch is partial.
func PlanPass(userID string, batch Batch, records map[string]*EntitlementRecord, catalog Catalog) *Plan {
	plan := &Plan{UserID: userID}
	plan.Summary.Reports = len(batch.Reports)

	working := make(map[string]*EntitlementRecord, len(records))
	for id, rec := range records {
		working[id] = rec.Clone()
	}

	// The latest delivery of a token wins within a batch.
	byProduct := make(map[string][]pendingReport)
	index := make(map[string]int)
	purchased := make(map[string]bool)
	pending := make(map[string]bool)

	for _, report := range batch.Reports {
		for _, productID := range report.ProductIDs {
			kind, ok := catalog.Lookup(productID)
			if !ok {
				plan.Errors = append(plan.Errors, unknownProduct(userID, productID, report.PurchaseToken))
				plan.Summary.UnknownProducts++
				continue
			}

			switch report.State {
			case StatePurchased:
				purchased[productID] = true
			case StatePending:
				pending[productID] = true
			}

			entry := pendingReport{productID: productID, kind: kind, report: report}
			key := productID + "\x00" + report.PurchaseToken
			if i, seen := index[key]; seen {
				byProduct[productID][i] = entry
				continue
			}
			index[key] = len(byProduct[productID])
			byProduct[productID] = append(byProduct[productID], entry)
		}
	}

	lanes := make(map[string]*Lane)
	lane := func(productID string, kind ProductKind) *Lane {
		l, ok := lanes[productID]
		if !ok {
			l = &Lane{ProductID: productID, Kind: kind}
			lanes[productID] = l
		}
		return l
	}

	for productID, entries := range byProduct {
		sort.SliceStable(entries, func(i, j int) bool {
			a, b := entries[i].report, entries[j].report
			if !a.PurchaseTime.Equal(b.PurchaseTime) {
				return a.PurchaseTime.Before(b.PurchaseTime)
			}
			return a.PurchaseToken < b.PurchaseToken
		})

		for _, entry := range entries {
			effects := Reconcile(userID, productID, entry.report, working[productID], entry.kind)
			for _, eff := range effects {
				if eff.Type == EffectPersist {
					working[productID] = eff.Record.Clone()
				}
				plan.count(eff)
			}
			lane(productID, entry.kind).add(entry.report.PurchaseToken, effects...)
		}
	}

	if batch.IsComplete() {
		for productID, rec := range working {
			kind, ok := catalog.Lookup(productID)
			if !ok || kind != KindSubscription || !rec.Active || purchased[productID] {
				continue
			}
			lapsed := rec.Clone()
			lapsed.Active = false
			working[productID] = lapsed
			eff := Persist(lapsed, "subscription absent from batch")
			plan.count(eff)
			plan.Summary.Lapses++
			lane(productID, kind).add(rec.PurchaseToken, eff)
		}
	}

	ids := make([]string, 0, len(lanes))
	for id := range lanes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		plan.Lanes = append(plan.Lanes, *lanes[id])
	}

	for id := range pending {
		if rec := working[id]; rec == nil || !rec.Active {
			plan.Pending = append(plan.Pending, id)
		}
	}
	sort.Strings(plan.Pending)

	return plan
}

func (p *Plan) count(eff Effect) {
	switch eff.Type {
	case EffectPersist:
		p.Summary.Persists++
	case EffectAcknowledge:
		p.Summary.Acknowledges++
	case EffectConsume:
		p.Summary.Consumes++
	case EffectNoop:
		p.Summary.Noops++
	}
}
