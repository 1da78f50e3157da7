package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/namn-grg/dual-channel-bot/internal/config"
	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
	"github.com/namn-grg/dual-channel-bot/internal/engine"
	"github.com/namn-grg/dual-channel-bot/internal/exchange"
	"github.com/namn-grg/dual-channel-bot/internal/exchange/paper"
	"github.com/namn-grg/dual-channel-bot/internal/observability"
	"github.com/namn-grg/dual-channel-bot/internal/position"
	"github.com/namn-grg/dual-channel-bot/internal/strategy"
)

func TestPositionLimitsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Limits.Scope = "per_channel"
	cfg.Limits.MaxPositionSize = config.D(decimal.NewFromInt(45))
	cfg.Limits.PerChannel = map[string]config.Decimal{"long": config.D(decimal.NewFromInt(20))}

	limits := positionLimits(cfg)
	require.Equal(t, position.ScopePerChannel, limits.Scope)
	require.True(t, limits.MaxPosition.Equal(decimal.NewFromInt(45)))
	require.True(t, limits.PerChannel["long"].Equal(decimal.NewFromInt(20)))

	require.Nil(t, positionLimits(config.Default()).PerChannel)
}

func TestBuildChannelsMapsSides(t *testing.T) {
	channels, err := buildChannels(config.Default())
	require.NoError(t, err)
	require.Len(t, channels, 2)
	require.Equal(t, schema.ChannelID("long"), channels[0].ID())
	require.Equal(t, schema.SideBuy, channels[0].Side())
	require.Equal(t, schema.SideSell, channels[1].Side())

	cfg := config.Default()
	cfg.Channels[1].Side = "hold"
	_, err = buildChannels(cfg)
	require.ErrorContains(t, err, "channel short")
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.js")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestBuildPolicySelectsKind(t *testing.T) {
	policy, err := buildPolicy(config.Default(), observability.Noop())
	require.NoError(t, err)
	_, ok := policy.(*strategy.DualChannel)
	require.True(t, ok)

	cfg := config.Default()
	cfg.Policy.Kind = config.PolicyJS
	cfg.Policy.Script = writeScript(t, `
module.exports = {
  metadata: { name: "flat" },
  computeTargets(snapshot, position, config) {
    return [{ channel: "long", price: snapshot.mid - config.gap, size: 1 }];
  },
};`)
	cfg.Policy.Params = map[string]any{"gap": 1}
	policy, err = buildPolicy(cfg, observability.Noop())
	require.NoError(t, err)
	require.Equal(t, "flat", policy.Name())

	targets, err := policy.ComputeTargets(schema.MarketSnapshot{Mid: decimal.NewFromInt(10)}, schema.PositionSnapshot{})
	require.NoError(t, err)
	require.Len(t, targets, 1)
	require.True(t, targets[0].Price.Equal(decimal.NewFromInt(9)))

	cfg.Policy.Script = filepath.Join(t.TempDir(), "missing.js")
	_, err = buildPolicy(cfg, observability.Noop())
	require.ErrorContains(t, err, "load policy script")
}

func TestPaperOptionsTicking(t *testing.T) {
	cfg := config.Default()
	require.Equal(t, defaultPaperTicking, paperOptions(cfg, false).TickInterval)
	require.Zero(t, paperOptions(cfg, true).TickInterval)

	cfg.Paper.TickInterval = config.Duration(250 * time.Millisecond)
	require.Equal(t, 250*time.Millisecond, paperOptions(cfg, false).TickInterval)

	cfg.Feed.URL = "wss://stream.example.com/ws"
	require.Zero(t, paperOptions(cfg, false).TickInterval)
}

func TestEngineConfigCarriesReconcilerSettings(t *testing.T) {
	cfg := config.Default()
	cfg.Reconciler.Rate = 5
	cfg.Reconciler.AdoptOnStartup = true

	ec := engineConfig(cfg)
	require.Equal(t, schema.Symbol("HYPE"), ec.Symbol)
	require.Equal(t, 5.0, ec.Reconciler.Rate)
	require.True(t, ec.Reconciler.AdoptOnStartup)
	require.Equal(t, 3, ec.Reconciler.Retry.MaxAttempts)
	require.True(t, ec.Reconciler.LotSize.Equal(decimal.RequireFromString("0.01")))
	require.True(t, ec.Tolerance.Price.Equal(decimal.RequireFromString("0.001")))
}

func TestCloseRunsStepsInReverseAndAggregates(t *testing.T) {
	var order []string
	b := &Bot{}
	b.onShutdown("first", func(context.Context) error {
		order = append(order, "first")
		return nil
	})
	b.onShutdown("second", func(context.Context) error {
		order = append(order, "second")
		return errors.New("boom")
	})

	err := b.Close(context.Background())
	require.ErrorContains(t, err, "second: boom")
	require.Equal(t, []string{"second", "first"}, order)

	require.NoError(t, b.Close(context.Background()))
	require.Len(t, order, 2)
}

type recorderFunc func(schema.Tick) error

func (f recorderFunc) Record(tick schema.Tick) error { return f(tick) }

func TestRecorderSetJoinsErrors(t *testing.T) {
	var seen int
	set := recorderSet{
		recorderFunc(func(schema.Tick) error { seen++; return nil }),
		recorderFunc(func(schema.Tick) error { seen++; return errors.New("disk full") }),
	}
	require.ErrorContains(t, set.Record(schema.Tick{}), "disk full")
	require.Equal(t, 2, seen)
}

func TestAssembleFailureReturnsNilBot(t *testing.T) {
	cfg := config.Default()
	cfg.Policy.Kind = config.PolicyJS
	cfg.Policy.Script = filepath.Join(t.TempDir(), "missing.js")
	b, err := Assemble(context.Background(), cfg, observability.Noop())
	require.Error(t, err)
	require.Nil(t, b)
}

func runUntil(t *testing.T, b *Bot, cond func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Engine.Run(ctx) }()

	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("engine did not stop")
	}
	require.NoError(t, b.Close(context.Background()))
}

func fastConfig() config.Config {
	cfg := config.Default()
	cfg.Paper.TickInterval = config.Duration(5 * time.Millisecond)
	cfg.Engine.RebalanceInterval = config.Duration(10 * time.Millisecond)
	cfg.Engine.ShutdownTimeout = config.Duration(time.Second)
	return cfg
}

func TestAssembleRunsAgainstPaperVenue(t *testing.T) {
	cfg := fastConfig()
	require.NoError(t, cfg.Validate())

	b, err := Assemble(context.Background(), cfg, observability.Noop())
	require.NoError(t, err)

	runUntil(t, b, func() bool { return b.Venue.Calls(paper.OpPlace) >= 2 })

	open, err := b.Venue.OpenOrders(context.Background())
	require.NoError(t, err)
	require.Empty(t, open)
}

type scriptedMarket struct {
	venue *paper.Exchange
	ticks []schema.Tick
}

func (s scriptedMarket) Run(ctx context.Context, _ exchange.Sink) error {
	for _, tick := range s.ticks {
		s.venue.Tick(tick)
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestExternalMarketAndRecorders(t *testing.T) {
	cfg := fastConfig()
	cfg.Market.RecordPath = filepath.Join(t.TempDir(), "ticks.jsonl")

	var recorded []schema.Tick
	b, err := Assemble(context.Background(), cfg, observability.Noop(),
		WithExternalMarket(),
		WithStream(func(b *Bot) exchange.Stream {
			return scriptedMarket{venue: b.Venue, ticks: []schema.Tick{
				{BestBid: decimal.RequireFromString("24.99"), BestAsk: decimal.RequireFromString("25.01")},
			}}
		}),
		WithRecorder(func(b *Bot) engine.TickRecorder {
			require.NotNil(t, b.Tracker)
			return recorderFunc(func(tick schema.Tick) error {
				recorded = append(recorded, tick)
				return nil
			})
		}),
	)
	require.NoError(t, err)

	runUntil(t, b, func() bool { return b.Venue.Calls(paper.OpPlace) >= 2 })

	require.Len(t, recorded, 1)
	info, err := os.Stat(cfg.Market.RecordPath)
	require.NoError(t, err)
	require.Positive(t, info.Size())
}
