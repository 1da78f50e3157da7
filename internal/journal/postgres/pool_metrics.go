package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/namn-grg/dual-channel-bot/internal/telemetry"
)

// ObservePoolMetrics registers gauges for total, idle and acquired pool connections.
func ObservePoolMetrics(pool *pgxpool.Pool) {
	if pool == nil {
		return
	}
	attrs := metric.WithAttributes(
		telemetry.AttrEnvironment.String(telemetry.Environment()),
		attribute.String("db_pool", "journal"))
	meter := otel.Meter("journal.postgres")

	gauges := []struct {
		name, desc string
		read       func(*pgxpool.Stat) int32
	}{
		{"dualbot_db_pool_connections_total", "Total connections (idle + acquired + constructing)", (*pgxpool.Stat).TotalConns},
		{"dualbot_db_pool_connections_idle", "Idle connections ready for checkout", (*pgxpool.Stat).IdleConns},
		{"dualbot_db_pool_connections_acquired", "Connections currently acquired by callers", (*pgxpool.Stat).AcquiredConns},
	}
	for _, g := range gauges {
		read := g.read
		if _, err := meter.Int64ObservableGauge(g.name,
			metric.WithDescription(g.desc),
			metric.WithUnit("{connection}"),
			metric.WithInt64Callback(func(_ context.Context, observer metric.Int64Observer) error {
				observer.Observe(int64(read(pool.Stat())), attrs)
				return nil
			}),
		); err != nil {
			return
		}
	}
}
