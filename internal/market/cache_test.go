package market

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCacheReadBeforeUpdate(t *testing.T) {
	cache := NewCache("HYPE", time.Second)
	_, ok := cache.Read()
	require.False(t, ok)
	require.False(t, cache.Fresh(time.Now()))
}

func TestCacheUpdateAndStaleness(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	cache := NewCache("HYPE", 2*time.Second)

	require.NoError(t, cache.Update(schema.Tick{Symbol: "HYPE", BestBid: dec("99"), BestAsk: dec("101"), Time: base}))
	snap, ok := cache.Read()
	require.True(t, ok)
	require.True(t, snap.Mid.Equal(dec("100")))

	require.True(t, cache.Fresh(base.Add(2*time.Second)))
	require.False(t, cache.Fresh(base.Add(3*time.Second)))
}

func TestCacheRejectsBadTicks(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	cache := NewCache("HYPE", 0)
	require.NoError(t, cache.Update(schema.Tick{BestBid: dec("99"), BestAsk: dec("101"), Time: base}))

	require.Error(t, cache.Update(schema.Tick{Symbol: "BTC", BestBid: dec("1"), BestAsk: dec("2"), Time: base}))
	require.Error(t, cache.Update(schema.Tick{BestBid: dec("99"), BestAsk: dec("101"), Mid: dec("105"), Time: base}))
	require.Error(t, cache.Update(schema.Tick{BestBid: dec("98"), BestAsk: dec("100"), Time: base.Add(-time.Second)}))
	require.Equal(t, uint64(3), cache.Rejected())

	snap, _ := cache.Read()
	require.True(t, snap.Mid.Equal(dec("100")), "rejected ticks leave the snapshot untouched")
	require.True(t, cache.Fresh(base.Add(time.Hour)), "zero staleAfter never goes stale")
}
