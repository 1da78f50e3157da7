package journal

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
	"github.com/namn-grg/dual-channel-bot/internal/observability"
)

func TestAsyncWritesThrough(t *testing.T) {
	mem := NewMemory()
	j, err := NewAsync(mem, 1, 8, time.Second, observability.NewRecorder())
	require.NoError(t, err)

	require.NoError(t, j.RecordOrder(context.Background(), schema.Order{ClientID: "c1", Status: schema.OrderOpen}))
	require.NoError(t, j.RecordFill(context.Background(), "bid", schema.Fill{TradeID: "t1", Size: decimal.NewFromInt(1)}))
	require.NoError(t, j.Close(context.Background()))

	require.Len(t, mem.Orders(), 1)
	require.Equal(t, "c1", mem.Orders()[0].ClientID)
	require.Len(t, mem.Fills(), 1)
	require.Equal(t, schema.ChannelID("bid"), mem.Fills()[0].Channel)
}

type failing struct{ Journal }

func (failing) RecordOrder(context.Context, schema.Order) error {
	return context.DeadlineExceeded
}

func TestAsyncLogsFailures(t *testing.T) {
	rec := observability.NewRecorder()
	j, err := NewAsync(failing{Noop()}, 1, 1, time.Second, rec)
	require.NoError(t, err)
	require.NoError(t, j.RecordOrder(context.Background(), schema.Order{ClientID: "c1"}))
	require.NoError(t, j.Close(context.Background()))
	require.Len(t, rec.Find("journal write failed"), 1)
}
