package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics holds the simulator's instruments. A nil *Metrics records nothing.
type Metrics struct {
	intents       metric.Int64Counter
	appends       metric.Int64Counter
	verifications metric.Int64Counter
	blocks        metric.Int64Counter
	freezes       metric.Int64Counter
}

// NewMetrics creates the instruments on m.
func NewMetrics(m metric.Meter) (*Metrics, error) {
	var (
		out Metrics
		err error
	)
	if out.intents, err = m.Int64Counter("helm_sim.intents",
		metric.WithDescription("User intents by kind and outcome"),
		metric.WithUnit("{intent}"),
	); err != nil {
		return nil, err
	}
	if out.appends, err = m.Int64Counter("helm_sim.ledger.appends",
		metric.WithDescription("Records appended to a hash chain"),
		metric.WithUnit("{record}"),
	); err != nil {
		return nil, err
	}
	if out.verifications, err = m.Int64Counter("helm_sim.ledger.verifications",
		metric.WithDescription("Chain verifications by result"),
		metric.WithUnit("{verification}"),
	); err != nil {
		return nil, err
	}
	if out.blocks, err = m.Int64Counter("helm_sim.simulator.blocks",
		metric.WithDescription("Investor ledger blocks by event type"),
		metric.WithUnit("{block}"),
	); err != nil {
		return nil, err
	}
	if out.freezes, err = m.Int64Counter("helm_sim.session.freezes",
		metric.WithDescription("Sessions frozen after failed verification"),
		metric.WithUnit("{session}"),
	); err != nil {
		return nil, err
	}
	return &out, nil
}

// NoopMetrics returns instruments that record nothing.
func NoopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter(instrumentationName))
	return m
}

func (m *Metrics) RecordIntent(ctx context.Context, kind, outcome string) {
	if m == nil {
		return
	}
	m.intents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("intent.kind", kind),
		attribute.String("intent.outcome", outcome),
	))
}

func (m *Metrics) RecordAppend(ctx context.Context, ledger string) {
	if m == nil {
		return
	}
	m.appends.Add(ctx, 1, metric.WithAttributes(attribute.String("ledger", ledger)))
}

func (m *Metrics) RecordVerification(ctx context.Context, ledger string, valid bool) {
	if m == nil {
		return
	}
	m.verifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("ledger", ledger),
		attribute.Bool("valid", valid),
	))
}

func (m *Metrics) RecordBlock(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.blocks.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

func (m *Metrics) RecordFreeze(ctx context.Context) {
	if m == nil {
		return
	}
	m.freezes.Add(ctx, 1)
}
