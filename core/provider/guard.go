package provider

import (
	"context"
	"errors"
	"time"

	"entitlement-manager/core/reconcile"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Guard protects a Finalizer with a rate limiter and a circuit breaker.
// Only transient failures count against the breaker.
type Guard struct {
	next    reconcile.Finalizer
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewGuard wraps next using the limiter and breaker settings of cfg.
func NewGuard(next reconcile.Finalizer, cfg Config, log *zap.Logger) *Guard {
	if log == nil {
		log = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	settings := gobreaker.Settings{
		Name:        "finalizer",
		MaxRequests: 1,
		Timeout:     time.Duration(cfg.BreakerTimeoutSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !reconcile.IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Guard{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

// Acknowledge forwards to the wrapped Finalizer.
func (g *Guard) Acknowledge(ctx context.Context, req reconcile.FinalizeRequest) error {
	return g.do(ctx, func() error { return g.next.Acknowledge(ctx, req) })
}

// Consume forwards to the wrapped Finalizer.
func (g *Guard) Consume(ctx context.Context, req reconcile.FinalizeRequest) error {
	return g.do(ctx, func() error { return g.next.Consume(ctx, req) })
}

// State returns the breaker state.
func (g *Guard) State() string {
	return g.breaker.State().String()
}

func (g *Guard) do(ctx context.Context, call func() error) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return reconcile.NewProviderError(reconcile.CodeServiceTimeout, "rate limit: %v", err)
	}

	_, err := g.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, call()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return reconcile.NewProviderError(reconcile.CodeServiceUnavailable, "finalizer circuit %s", g.breaker.State())
	}
	return err
}
