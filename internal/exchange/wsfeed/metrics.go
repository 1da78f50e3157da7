package wsfeed

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/namn-grg/dual-channel-bot/internal/telemetry"
)

type feedMetrics struct {
	environment string
	symbol      string
	reconnects  metric.Int64Counter
	messages    metric.Int64Counter
}

func newFeedMetrics(symbol string) *feedMetrics {
	meter := otel.Meter("exchange.wsfeed")
	fm := &feedMetrics{environment: telemetry.Environment(), symbol: symbol}
	fm.reconnects, _ = meter.Int64Counter("dualbot_feed_connects_total",
		metric.WithDescription("Websocket dial attempts by outcome"),
		metric.WithUnit("{attempt}"))
	fm.messages, _ = meter.Int64Counter("dualbot_feed_messages_total",
		metric.WithDescription("Feed messages received by outcome"),
		metric.WithUnit("{message}"))
	return fm
}

func (fm *feedMetrics) reconnect(result string) {
	if fm == nil || fm.reconnects == nil {
		return
	}
	fm.reconnects.Add(context.Background(), 1, metric.WithAttributes(
		telemetry.AttrEnvironment.String(fm.environment),
		telemetry.AttrSymbol.String(fm.symbol),
		telemetry.AttrResult.String(result)))
}

func (fm *feedMetrics) message(result string) {
	if fm == nil || fm.messages == nil {
		return
	}
	fm.messages.Add(context.Background(), 1, metric.WithAttributes(
		telemetry.AttrEnvironment.String(fm.environment),
		telemetry.AttrSymbol.String(fm.symbol),
		telemetry.AttrResult.String(result)))
}
