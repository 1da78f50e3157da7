package engine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/namn-grg/dual-channel-bot/internal/telemetry"
)

type metrics struct {
	environment string
	symbol      string
	events      metric.Int64Counter
	skips       metric.Int64Counter
	unconfirmed metric.Int64Counter
}

func newMetrics(symbol string) *metrics {
	meter := otel.Meter("engine")
	m := &metrics{environment: telemetry.Environment(), symbol: symbol}
	m.events, _ = meter.Int64Counter("dualbot_events_total",
		metric.WithDescription("Exchange events processed by the event loop"),
		metric.WithUnit("{event}"))
	m.skips, _ = meter.Int64Counter("dualbot_requotes_skipped_total",
		metric.WithDescription("Evaluation cycles skipped"),
		metric.WithUnit("{cycle}"))
	m.unconfirmed, _ = meter.Int64Counter("dualbot_unconfirmed_orders_total",
		metric.WithDescription("Orders left working after the shutdown drain"),
		metric.WithUnit("{order}"))
	return m
}

func (m *metrics) event(kind string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.Add(context.Background(), 1,
		metric.WithAttributes(telemetry.EventAttributes(m.environment, kind, m.symbol)...))
}

func (m *metrics) skipped(reason string) {
	if m == nil || m.skips == nil {
		return
	}
	m.skips.Add(context.Background(), 1, metric.WithAttributes(
		telemetry.AttrEnvironment.String(m.environment),
		telemetry.AttrSymbol.String(m.symbol),
		attribute.String("reason", reason)))
}

func (m *metrics) unconfirmedOrders(n int) {
	if m == nil || m.unconfirmed == nil || n == 0 {
		return
	}
	m.unconfirmed.Add(context.Background(), int64(n),
		metric.WithAttributes(telemetry.AttrEnvironment.String(m.environment)))
}
