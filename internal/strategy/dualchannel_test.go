package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func baseConfig() DualChannelConfig {
	return DualChannelConfig{
		BuyChannel:  "A",
		SellChannel: "B",
		Offset:      dec("0.005"),
		ChannelSize: dec("10"),
		MaxPosition: dec("20"),
		TickSize:    dec("0.01"),
		LotSize:     dec("0.1"),
	}
}

func snapAt(mid string) schema.MarketSnapshot {
	m := dec(mid)
	return schema.MarketSnapshot{BestBid: m.Sub(dec("0.05")), BestAsk: m.Add(dec("0.05")), Mid: m}
}

func byChannel(targets []schema.Target) map[schema.ChannelID]schema.Target {
	out := make(map[schema.ChannelID]schema.Target, len(targets))
	for _, t := range targets {
		out[t.Channel] = t
	}
	return out
}

func TestDualChannelQuotesAroundMid(t *testing.T) {
	p, err := NewDualChannel(baseConfig())
	require.NoError(t, err)

	targets, err := p.ComputeTargets(snapAt("100"), schema.PositionSnapshot{})
	require.NoError(t, err)
	got := byChannel(targets)
	require.Len(t, got, 2)
	require.True(t, got["A"].Price.Equal(dec("99.5")), got["A"].Price.String())
	require.True(t, got["A"].Size.Equal(dec("10")))
	require.True(t, got["B"].Price.Equal(dec("100.5")), got["B"].Price.String())
}

func TestDualChannelRoundsAwayFromMid(t *testing.T) {
	cfg := baseConfig()
	cfg.Offset = dec("0.001")
	p, err := NewDualChannel(cfg)
	require.NoError(t, err)

	targets, err := p.ComputeTargets(snapAt("123.456"), schema.PositionSnapshot{})
	require.NoError(t, err)
	got := byChannel(targets)
	// 123.456 * 0.999 = 123.332544, 123.456 * 1.001 = 123.579456
	require.True(t, got["A"].Price.Equal(dec("123.33")), got["A"].Price.String())
	require.True(t, got["B"].Price.Equal(dec("123.58")), got["B"].Price.String())
}

func TestDualChannelLeverageAndLot(t *testing.T) {
	cfg := baseConfig()
	cfg.ChannelSize = dec("0.35")
	cfg.Leverage = dec("3")
	p, err := NewDualChannel(cfg)
	require.NoError(t, err)

	targets, err := p.ComputeTargets(snapAt("100"), schema.PositionSnapshot{})
	require.NoError(t, err)
	require.True(t, targets[0].Size.Equal(dec("1")), targets[0].Size.String())
}

func TestDualChannelSuppressesSideAtCap(t *testing.T) {
	p, err := NewDualChannel(baseConfig())
	require.NoError(t, err)

	targets, err := p.ComputeTargets(snapAt("100"), schema.PositionSnapshot{NetSize: dec("20")})
	require.NoError(t, err)
	got := byChannel(targets)
	require.NotContains(t, got, schema.ChannelID("A"))
	require.Contains(t, got, schema.ChannelID("B"))

	targets, err = p.ComputeTargets(snapAt("100"), schema.PositionSnapshot{NetSize: dec("-25")})
	require.NoError(t, err)
	got = byChannel(targets)
	require.Contains(t, got, schema.ChannelID("A"))
	require.NotContains(t, got, schema.ChannelID("B"))
}

func TestDualChannelSkewsAgainstInventory(t *testing.T) {
	cfg := baseConfig()
	cfg.SkewThreshold = dec("5")
	p, err := NewDualChannel(cfg)
	require.NoError(t, err)

	// net 10 of max 20 shifts both quotes down by half the offset
	targets, err := p.ComputeTargets(snapAt("100"), schema.PositionSnapshot{NetSize: dec("10")})
	require.NoError(t, err)
	got := byChannel(targets)
	require.True(t, got["A"].Price.Equal(dec("99.25")), got["A"].Price.String())
	require.True(t, got["B"].Price.Equal(dec("100.25")), got["B"].Price.String())

	// below the threshold quotes stay symmetric
	targets, err = p.ComputeTargets(snapAt("100"), schema.PositionSnapshot{NetSize: dec("-4")})
	require.NoError(t, err)
	got = byChannel(targets)
	require.True(t, got["A"].Price.Equal(dec("99.5")))
	require.True(t, got["B"].Price.Equal(dec("100.5")))
}

func TestDualChannelTakeProfitExitsLong(t *testing.T) {
	cfg := baseConfig()
	cfg.TakeProfit = dec("0.02")
	cfg.StopLoss = dec("0.04")
	p, err := NewDualChannel(cfg)
	require.NoError(t, err)

	pos := schema.PositionSnapshot{NetSize: dec("3.25"), AvgEntryPrice: dec("100")}
	targets, err := p.ComputeTargets(snapAt("102"), pos)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	require.Equal(t, schema.ChannelID("B"), targets[0].Channel)
	require.True(t, targets[0].Price.Equal(dec("101.95")), targets[0].Price.String())
	require.True(t, targets[0].Size.Equal(dec("3.2")), targets[0].Size.String())

	// inside the band the normal quotes resume
	targets, err = p.ComputeTargets(snapAt("101"), pos)
	require.NoError(t, err)
	require.Len(t, targets, 2)
}

func TestDualChannelStopLossExitsShort(t *testing.T) {
	cfg := baseConfig()
	cfg.StopLoss = dec("0.04")
	p, err := NewDualChannel(cfg)
	require.NoError(t, err)

	pos := schema.PositionSnapshot{NetSize: dec("-2"), AvgEntryPrice: dec("100")}
	targets, err := p.ComputeTargets(snapAt("104"), pos)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	require.Equal(t, schema.ChannelID("A"), targets[0].Channel)
	require.True(t, targets[0].Price.Equal(dec("104.05")), targets[0].Price.String())
	require.True(t, targets[0].Size.Equal(dec("2")))
}

func TestDualChannelMaxHoldExitsRegardlessOfPnL(t *testing.T) {
	cfg := baseConfig()
	cfg.MaxHold = time.Hour
	p, err := NewDualChannel(cfg)
	require.NoError(t, err)

	opened := time.Unix(10_000, 0)
	pos := schema.PositionSnapshot{NetSize: dec("-2"), AvgEntryPrice: dec("100"), OpenedAt: opened}
	snap := snapAt("101")
	snap.Time = opened.Add(59 * time.Minute)
	targets, err := p.ComputeTargets(snap, pos)
	require.NoError(t, err)
	require.Len(t, targets, 2)

	// losing short, but held for the full hour
	snap.Time = opened.Add(time.Hour)
	targets, err = p.ComputeTargets(snap, pos)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	require.Equal(t, schema.ChannelID("A"), targets[0].Channel)
	require.True(t, targets[0].Price.Equal(dec("101.05")), targets[0].Price.String())
	require.True(t, targets[0].Size.Equal(dec("2")))

	// no open time means no holding exit
	pos.OpenedAt = time.Time{}
	targets, err = p.ComputeTargets(snap, pos)
	require.NoError(t, err)
	require.Len(t, targets, 2)
}

func TestDualChannelProfitCheckClosesOnlyWinners(t *testing.T) {
	cfg := baseConfig()
	cfg.MaxHold = time.Hour
	cfg.ProfitCheckAfter = 30 * time.Minute
	p, err := NewDualChannel(cfg)
	require.NoError(t, err)

	opened := time.Unix(10_000, 0)
	long := schema.PositionSnapshot{NetSize: dec("3"), AvgEntryPrice: dec("100"), OpenedAt: opened}

	winning := snapAt("100.5")
	winning.Time = opened.Add(29 * time.Minute)
	targets, err := p.ComputeTargets(winning, long)
	require.NoError(t, err)
	require.Len(t, targets, 2)

	winning.Time = opened.Add(30 * time.Minute)
	targets, err = p.ComputeTargets(winning, long)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	require.Equal(t, schema.ChannelID("B"), targets[0].Channel)
	require.True(t, targets[0].Size.Equal(dec("3")))

	losing := snapAt("99.5")
	losing.Time = opened.Add(45 * time.Minute)
	targets, err = p.ComputeTargets(losing, long)
	require.NoError(t, err)
	require.Len(t, targets, 2)
}

func TestDualChannelRejectsBadConfig(t *testing.T) {
	cases := map[string]func(*DualChannelConfig){
		"missing channel": func(c *DualChannelConfig) { c.SellChannel = "" },
		"same channel":    func(c *DualChannelConfig) { c.SellChannel = c.BuyChannel },
		"offset":          func(c *DualChannelConfig) { c.Offset = dec("1") },
		"size":            func(c *DualChannelConfig) { c.ChannelSize = decimal.Zero },
		"leverage":        func(c *DualChannelConfig) { c.Leverage = dec("-1") },
		"stop loss":       func(c *DualChannelConfig) { c.StopLoss = dec("-0.1") },
		"max hold":        func(c *DualChannelConfig) { c.MaxHold = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := baseConfig()
			mutate(&cfg)
			_, err := NewDualChannel(cfg)
			require.Error(t, err)
		})
	}
}

func TestDualChannelRequiresMid(t *testing.T) {
	p, err := NewDualChannel(baseConfig())
	require.NoError(t, err)
	_, err = p.ComputeTargets(schema.MarketSnapshot{}, schema.PositionSnapshot{})
	require.Error(t, err)
}

func TestRounding(t *testing.T) {
	require.True(t, RoundDown(dec("1.239"), dec("0.01")).Equal(dec("1.23")))
	require.True(t, RoundUp(dec("1.231"), dec("0.01")).Equal(dec("1.24")))
	require.True(t, RoundUp(dec("1.23"), dec("0.01")).Equal(dec("1.23")))
	require.True(t, RoundDown(dec("1.239"), decimal.Zero).Equal(dec("1.239")))
}
