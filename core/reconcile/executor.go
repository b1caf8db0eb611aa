package reconcile

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Outcome is the result of applying one effect.
type Outcome string

const (
	OutcomeApplied          Outcome = "applied"
	OutcomeNoop             Outcome = "noop"
	OutcomeAlreadyFinalized Outcome = "already_finalized"
	OutcomeFailed           Outcome = "failed"
	OutcomeRejected         Outcome = "rejected"
	OutcomeSkipped          Outcome = "skipped"
)

// Succeeded reports whether the effect reached its goal.
func (o Outcome) Succeeded() bool {
	return o == OutcomeApplied || o == OutcomeNoop || o == OutcomeAlreadyFinalized
}

// EffectResult is the per-effect result of a pass.
type EffectResult struct {
	Effect   Effect  `json:"effect"`
	Outcome  Outcome `json:"outcome"`
	Attempts int     `json:"attempts,omitempty"`
	Err      *Error  `json:"error,omitempty"`
}

// Attempt is one provider finalization call.
type Attempt struct {
	UserID    string
	ProductID string
	Token     string
	Effect    EffectType
	Number    int
	Outcome   Outcome
	Error     string
	Duration  time.Duration
	At        time.Time
}

// Journal records finalization attempts.
type Journal interface {
	Record(ctx context.Context, attempt Attempt) error
}

// Executor applies plans against the store and the provider.
type Executor struct {
	store     *Store
	finalizer Finalizer
	cfg       FinalizeConfig
	log       *zap.Logger
	journal   Journal
	metrics   *Metrics
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithJournal records every finalization attempt in j.
func WithJournal(j Journal) ExecutorOption {
	return func(e *Executor) { e.journal = j }
}

// WithMetrics records effect outcomes in m.
func WithMetrics(m *Metrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// NewExecutor creates an Executor.
func NewExecutor(store *Store, finalizer Finalizer, cfg FinalizeConfig, log *zap.Logger, opts ...ExecutorOption) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Executor{
		store:     store,
		finalizer: finalizer,
		cfg:       cfg.withDefaults(),
		log:       log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply executes plan. Lanes run concurrently, except that lanes sharing a
// purchase token run one after another in plan order. Sequences within a lane
// run in order and stop at their first failure. Cancellation is observed
// between effects only. A StorageError aborts the pass and is returned along
// with the partial report.
func (e *Executor) Apply(ctx context.Context, plan *Plan) (*PassReport, error) {
	report := &PassReport{UserID: plan.UserID, Plan: plan.Summary}
	report.Errors = append(report.Errors, plan.Errors...)

	laneResults := make([][]EffectResult, len(plan.Lanes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for _, group := range laneGroups(plan.Lanes) {
		g.Go(func() error {
			for n, i := range group {
				results, err := e.applyLane(gctx, plan.UserID, plan.Lanes[i])
				laneResults[i] = results
				if err != nil {
					for _, rest := range group[n+1:] {
						laneResults[rest] = skipped(plan.Lanes[rest].effects())
					}
					return err
				}
			}
			return nil
		})
	}
	err := g.Wait()

	for _, results := range laneResults {
		for _, res := range results {
			report.Results = append(report.Results, res)
			if res.Err != nil {
				report.Errors = append(report.Errors, res.Err)
			}
		}
	}
	return report, err
}

func (e *Executor) applyLane(ctx context.Context, userID string, lane Lane) ([]EffectResult, error) {
	var results []EffectResult
	for _, seq := range lane.Sequences {
		for i, eff := range seq.Effects {
			if err := ctx.Err(); err != nil {
				results = append(results, skipped(seq.Effects[i:])...)
				return results, err
			}

			// Once started an effect runs to completion.
			res := e.applyEffect(context.WithoutCancel(ctx), userID, eff)
			results = append(results, res)
			e.metrics.recordEffect(ctx, eff, res.Outcome)

			if res.Outcome.Succeeded() {
				continue
			}

			e.log.Warn("Effect failed",
				zap.String("user_id", userID),
				zap.String("product_id", eff.ProductID),
				zap.String("token", eff.Token),
				zap.String("effect", string(eff.Type)),
				zap.String("outcome", string(res.Outcome)),
				zap.Error(res.Err),
			)
			results = append(results, skipped(seq.Effects[i+1:])...)
			if res.Err != nil && res.Err.Kind == KindStorageError {
				return results, res.Err
			}
			break
		}
	}
	return results, nil
}

// laneGroups partitions lane indexes so lanes sharing a purchase token land in
// the same group. Groups and the indexes inside them keep plan order.
func laneGroups(lanes []Lane) [][]int {
	parent := make([]int, len(lanes))
	for i := range parent {
		parent[i] = i
	}
	var find func(i int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}

	owner := make(map[string]int)
	for i, lane := range lanes {
		for _, seq := range lane.Sequences {
			if seq.Token == "" {
				continue
			}
			j, seen := owner[seq.Token]
			if !seen {
				owner[seq.Token] = i
				continue
			}
			a, b := find(i), find(j)
			if a > b {
				a, b = b, a
			}
			parent[b] = a
		}
	}

	var groups [][]int
	index := make(map[int]int)
	for i := range lanes {
		root := find(i)
		g, ok := index[root]
		if !ok {
			g = len(groups)
			index[root] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

func skipped(effects []Effect) []EffectResult {
	results := make([]EffectResult, 0, len(effects))
	for _, eff := range effects {
		results = append(results, EffectResult{Effect: eff, Outcome: OutcomeSkipped})
	}
	return results
}

func (e *Executor) applyEffect(ctx context.Context, userID string, eff Effect) EffectResult {
	switch eff.Type {
	case EffectNoop:
		return EffectResult{Effect: eff, Outcome: OutcomeNoop}
	case EffectPersist:
		attempts, err := e.withStorageRetry(ctx, eff.Token, func() error {
			return e.store.Put(ctx, eff.Record)
		})
		if err != nil {
			return EffectResult{Effect: eff, Outcome: OutcomeFailed, Attempts: attempts, Err: storageError(userID, eff.ProductID, err)}
		}
		return EffectResult{Effect: eff, Outcome: OutcomeApplied, Attempts: attempts}
	default:
		return e.finalize(ctx, userID, eff)
	}
}

func (e *Executor) finalize(ctx context.Context, userID string, eff Effect) EffectResult {
	req := FinalizeRequest{UserID: userID, ProductID: eff.ProductID, Kind: eff.Kind, Token: eff.Token}
	call := e.finalizer.Acknowledge
	if eff.Type == EffectConsume {
		call = e.finalizer.Consume
	}

	base := time.Duration(e.cfg.BaseDelayMS) * time.Millisecond
	maxDelay := time.Duration(e.cfg.MaxDelayMS) * time.Millisecond

	var (
		outcome Outcome
		lastErr error
		attempt int
	)
	for attempt = 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		start := time.Now()
		err := call(ctx, req)
		elapsed := time.Since(start)
		e.metrics.recordCall(ctx, eff, elapsed, err)

		switch {
		case err == nil:
			outcome = OutcomeApplied
		case IsAlreadyFinalized(err):
			outcome = OutcomeAlreadyFinalized
		case IsTransient(err):
			outcome = OutcomeFailed
		default:
			outcome = OutcomeRejected
		}
		lastErr = err
		e.journalAttempt(ctx, userID, eff, attempt, outcome, err, elapsed, start)

		if outcome != OutcomeFailed {
			break
		}
		if attempt < e.cfg.MaxAttempts {
			_ = sleep(ctx, Backoff(attempt-1, base, maxDelay, eff.Token))
		}
	}
	if attempt > e.cfg.MaxAttempts {
		attempt = e.cfg.MaxAttempts
	}

	res := EffectResult{Effect: eff, Outcome: outcome, Attempts: attempt}

	var mutate func(rec *EntitlementRecord) bool
	switch outcome {
	case OutcomeApplied, OutcomeAlreadyFinalized:
		mutate = func(rec *EntitlementRecord) bool {
			if eff.Type == EffectConsume {
				rec.Active = false
				rec.Consumed = true
			}
			rec.Finalized = true
			rec.FailedPasses = 0
			return true
		}
	case OutcomeFailed:
		res.Err = &Error{Kind: KindFinalizationFailed, UserID: userID, ProductID: eff.ProductID, Token: eff.Token, Effect: eff.Type, Err: lastErr}
		mutate = func(rec *EntitlementRecord) bool {
			rec.FailedPasses++
			return true
		}
	case OutcomeRejected:
		res.Err = &Error{Kind: KindFinalizationRejected, UserID: userID, ProductID: eff.ProductID, Token: eff.Token, Effect: eff.Type, Err: lastErr}
		mutate = func(rec *EntitlementRecord) bool {
			rec.Active = false
			rec.Rejected = true
			return true
		}
	}

	// Bookkeeping only touches the record still granted by this token.
	_, err := e.withStorageRetry(ctx, eff.Token, func() error {
		_, err := e.store.Update(ctx, userID, eff.ProductID, func(rec *EntitlementRecord) bool {
			if rec.PurchaseToken != eff.Token {
				return false
			}
			return mutate(rec)
		})
		return err
	})
	if err != nil {
		return EffectResult{Effect: eff, Outcome: OutcomeFailed, Attempts: attempt, Err: storageError(userID, eff.ProductID, err)}
	}
	return res
}

func (e *Executor) withStorageRetry(ctx context.Context, seed string, op func() error) (int, error) {
	base := time.Duration(e.cfg.BaseDelayMS) * time.Millisecond
	maxDelay := time.Duration(e.cfg.MaxDelayMS) * time.Millisecond

	var err error
	for attempt := 1; attempt <= e.cfg.StorageAttempts; attempt++ {
		if err = op(); err == nil {
			return attempt, nil
		}
		if attempt < e.cfg.StorageAttempts {
			_ = sleep(ctx, Backoff(attempt-1, base, maxDelay, "store:"+seed))
		}
	}
	return e.cfg.StorageAttempts, err
}

func (e *Executor) journalAttempt(ctx context.Context, userID string, eff Effect, n int, outcome Outcome, err error, d time.Duration, at time.Time) {
	if e.journal == nil {
		return
	}
	a := Attempt{
		UserID:    userID,
		ProductID: eff.ProductID,
		Token:     eff.Token,
		Effect:    eff.Type,
		Number:    n,
		Outcome:   outcome,
		Duration:  d,
		At:        at,
	}
	if err != nil {
		a.Error = err.Error()
	}
	if jerr := e.journal.Record(ctx, a); jerr != nil {
		e.log.Warn("Failed to journal finalization attempt", zap.String("token", eff.Token), zap.Error(jerr))
	}
}

// PassReport aggregates the results of one pass. Partial success is represented
// by a mix of succeeded and failed results.
type PassReport struct {
	UserID     string         `json:"user_id"`
	Trigger    Trigger        `json:"trigger"`
	Coalesced  bool           `json:"coalesced"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Plan       PlanSummary    `json:"plan"`
	Results    []EffectResult `json:"results"`
	Errors     []*Error       `json:"errors,omitempty"`
	Snapshot   *Snapshot      `json:"snapshot,omitempty"`
}

// Err joins every error of the pass.
func (r *PassReport) Err() error {
	errs := make([]error, 0, len(r.Errors))
	for _, err := range r.Errors {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Count returns the number of results with outcome o.
func (r *PassReport) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}
