package reconcile

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records executor outcomes. A nil *Metrics records nothing.
type Metrics struct {
	effects  metric.Int64Counter
	latency  metric.Float64Histogram
	passes   metric.Int64Counter
	inFlight metric.Int64UpDownCounter
}

// NewMetrics registers the executor instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)

	m.effects, err = meter.Int64Counter("entitlements.effects.total",
		metric.WithDescription("Applied effects by type and outcome"),
		metric.WithUnit("{effect}"),
	)
	if err != nil {
		return nil, err
	}

	m.latency, err = meter.Float64Histogram("entitlements.provider.duration",
		metric.WithDescription("Provider finalization call latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	m.passes, err = meter.Int64Counter("entitlements.passes.total",
		metric.WithDescription("Reconciliation passes by trigger"),
		metric.WithUnit("{pass}"),
	)
	if err != nil {
		return nil, err
	}

	m.inFlight, err = meter.Int64UpDownCounter("entitlements.passes.active",
		metric.WithDescription("Passes currently in flight"),
	)
	if err != nil {
		return nil, err
	}

	return &m, nil
}

func (m *Metrics) recordEffect(ctx context.Context, eff Effect, outcome Outcome) {
	if m == nil {
		return
	}
	m.effects.Add(ctx, 1, metric.WithAttributes(
		attribute.String("effect", string(eff.Type)),
		attribute.String("kind", string(eff.Kind)),
		attribute.String("outcome", string(outcome)),
	))
}

func (m *Metrics) recordCall(ctx context.Context, eff Effect, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.latency.Record(ctx, float64(d.Microseconds())/1000, metric.WithAttributes(
		attribute.String("effect", string(eff.Type)),
		attribute.Bool("error", err != nil),
	))
}

func (m *Metrics) passStarted(ctx context.Context, trigger Trigger) func() {
	if m == nil {
		return func() {}
	}
	attrs := metric.WithAttributes(attribute.String("trigger", string(trigger)))
	m.passes.Add(ctx, 1, attrs)
	m.inFlight.Add(ctx, 1)
	return func() { m.inFlight.Add(ctx, -1) }
}
