package position

import (
	"context"

	"go.opentelemetry.io/otel/metric"

	"github.com/namn-grg/dual-channel-bot/internal/telemetry"
)

// RegisterMetrics publishes the position as observable gauges on meter.
func (t *Tracker) RegisterMetrics(meter metric.Meter, symbol string) error {
	attrs := metric.WithAttributes(
		telemetry.AttrEnvironment.String(telemetry.Environment()),
		telemetry.AttrSymbol.String(symbol),
	)
	net, err := meter.Float64ObservableGauge("dualbot_position_net_size",
		metric.WithDescription("Net position size"),
		metric.WithUnit("{contract}"))
	if err != nil {
		return err
	}
	avg, err := meter.Float64ObservableGauge("dualbot_position_avg_entry",
		metric.WithDescription("Average entry price of the open position"))
	if err != nil {
		return err
	}
	realized, err := meter.Float64ObservableGauge("dualbot_position_realized_pnl",
		metric.WithDescription("Realized PnL since start"))
	if err != nil {
		return err
	}
	_, err = meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		snap := t.Snapshot()
		observer.ObserveFloat64(net, snap.NetSize.InexactFloat64(), attrs)
		observer.ObserveFloat64(avg, snap.AvgEntryPrice.InexactFloat64(), attrs)
		observer.ObserveFloat64(realized, snap.RealizedPnL.InexactFloat64(), attrs)
		return nil
	}, net, avg, realized)
	return err
}
