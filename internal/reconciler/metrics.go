package reconciler

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/namn-grg/dual-channel-bot/internal/telemetry"
)

type metrics struct {
	environment string
	commands    metric.Int64Counter
	retries     metric.Int64Counter
	timeouts    metric.Int64Counter
	duration    metric.Float64Histogram
	depth       atomic.Int64
	inflight    atomic.Int64
}

func newMetrics() *metrics {
	meter := otel.Meter("reconciler")
	m := &metrics{environment: telemetry.Environment()}
	m.commands, _ = meter.Int64Counter("dualbot_commands_total",
		metric.WithDescription("Exchange commands completed by kind and result"),
		metric.WithUnit("{command}"))
	m.retries, _ = meter.Int64Counter("dualbot_command_retries_total",
		metric.WithDescription("Transient failures retried"),
		metric.WithUnit("{retry}"))
	m.timeouts, _ = meter.Int64Counter("dualbot_command_timeouts_total",
		metric.WithDescription("Commands whose outcome became unknown"),
		metric.WithUnit("{command}"))
	m.duration, _ = meter.Float64Histogram("dualbot_command_duration",
		metric.WithDescription("Exchange command round trip including retries"),
		metric.WithUnit("ms"))
	_, _ = meter.Int64ObservableGauge("dualbot_command_queue_depth",
		metric.WithDescription("Commands waiting for dispatch"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.depth.Load(), metric.WithAttributes(telemetry.AttrEnvironment.String(m.environment)))
			return nil
		}))
	_, _ = meter.Int64ObservableGauge("dualbot_commands_inflight",
		metric.WithDescription("Commands awaiting an exchange response"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.inflight.Load(), metric.WithAttributes(telemetry.AttrEnvironment.String(m.environment)))
			return nil
		}))
	return m
}

func (m *metrics) recordCommand(res Result, result string) {
	if m == nil || m.commands == nil {
		return
	}
	attrs := metric.WithAttributes(telemetry.CommandAttributes(m.environment, res.Command.Kind.String(), string(res.Command.Channel), result)...)
	m.commands.Add(context.Background(), 1, attrs)
	if m.duration != nil {
		m.duration.Record(context.Background(), float64(res.Latency.Microseconds())/1000, attrs)
	}
	if result == telemetry.ResultTimeout && m.timeouts != nil {
		m.timeouts.Add(context.Background(), 1, attrs)
	}
}

func (m *metrics) recordRetry(kind Kind) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.Add(context.Background(), 1, metric.WithAttributes(
		telemetry.AttrEnvironment.String(m.environment),
		telemetry.AttrCommandType.String(kind.String())))
}
