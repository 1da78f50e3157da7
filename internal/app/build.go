package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/namn-grg/dual-channel-bot/internal/channel"
	"github.com/namn-grg/dual-channel-bot/internal/config"
	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
	"github.com/namn-grg/dual-channel-bot/internal/engine"
	"github.com/namn-grg/dual-channel-bot/internal/exchange/paper"
	"github.com/namn-grg/dual-channel-bot/internal/journal"
	"github.com/namn-grg/dual-channel-bot/internal/journal/migrations"
	"github.com/namn-grg/dual-channel-bot/internal/journal/postgres"
	"github.com/namn-grg/dual-channel-bot/internal/observability"
	"github.com/namn-grg/dual-channel-bot/internal/position"
	"github.com/namn-grg/dual-channel-bot/internal/reconciler"
	"github.com/namn-grg/dual-channel-bot/internal/strategy"
	"github.com/namn-grg/dual-channel-bot/internal/strategy/js"
)

func openJournal(ctx context.Context, b *Bot, cfg config.Config, logger observability.Logger) (journal.Journal, error) {
	if err := migrations.Up(ctx, cfg.Journal.DSN, migrations.WithLogger(logger)); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	pool, err := postgres.Connect(ctx, cfg.Journal.DSN)
	if err != nil {
		return nil, err
	}
	b.onShutdown("journal pool", func(context.Context) error {
		pool.Close()
		return nil
	})
	postgres.ObservePoolMetrics(pool)

	store, err := postgres.New(pool, schema.Symbol(cfg.Symbol), postgres.WithMetadata(map[string]any{
		"network": string(cfg.Network),
		"policy":  cfg.Policy.Kind,
	}))
	if err != nil {
		return nil, err
	}
	async, err := journal.NewAsync(store, cfg.Journal.Workers, cfg.Journal.Queue, cfg.Journal.Timeout.Std(), logger)
	if err != nil {
		return nil, err
	}
	b.onShutdown("journal", async.Close)
	logger.Info("journal enabled", observability.F("workers", cfg.Journal.Workers))
	return async, nil
}

func positionLimits(cfg config.Config) position.Limits {
	limits := position.Limits{
		Scope:        position.Scope(cfg.Limits.Scope),
		MaxPosition:  cfg.Limits.MaxPositionSize.Decimal,
		MaxOrderSize: cfg.Limits.MaxOrderSize.Decimal,
	}
	if len(cfg.Limits.PerChannel) > 0 {
		limits.PerChannel = make(map[schema.ChannelID]decimal.Decimal, len(cfg.Limits.PerChannel))
		for id, limit := range cfg.Limits.PerChannel {
			limits.PerChannel[schema.ChannelID(id)] = limit.Decimal
		}
	}
	return limits
}

func buildChannels(cfg config.Config) ([]*channel.Channel, error) {
	out := make([]*channel.Channel, 0, len(cfg.Channels))
	for _, c := range cfg.Channels {
		side, err := schema.ParseSide(c.Side)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", c.ID, err)
		}
		out = append(out, channel.New(schema.ChannelID(c.ID), side))
	}
	return out, nil
}

func buildPolicy(cfg config.Config, logger observability.Logger) (strategy.Policy, error) {
	p := cfg.Policy
	switch p.Kind {
	case config.PolicyJS:
		policy, err := js.Load(p.Script,
			js.WithConfig(p.Params),
			js.WithTimeout(p.Timeout.Std()),
			js.WithInstrument(cfg.Instrument.TickSize.Decimal, cfg.Instrument.LotSize.Decimal),
			js.WithLogger(observability.With(logger, observability.F("component", "policy"))))
		if err != nil {
			return nil, fmt.Errorf("load policy script: %w", err)
		}
		logger.Info("script policy loaded",
			observability.F("policy", policy.Name()),
			observability.F("hash", policy.Hash()))
		return policy, nil
	default:
		return strategy.NewDualChannel(strategy.DualChannelConfig{
			BuyChannel:       schema.ChannelID(cfg.BuyChannel()),
			SellChannel:      schema.ChannelID(cfg.SellChannel()),
			Offset:           p.Offset.Decimal,
			ChannelSize:      p.ChannelSize.Decimal,
			Leverage:         p.Leverage.Decimal,
			MaxPosition:      cfg.Limits.MaxPositionSize.Decimal,
			SkewThreshold:    p.SkewThreshold.Decimal,
			TakeProfit:       p.TakeProfit.Decimal,
			StopLoss:         p.StopLoss.Decimal,
			MaxHold:          holdLimit(p.MaxHold),
			ProfitCheckAfter: holdLimit(p.ProfitCheckAfter),
			TickSize:         cfg.Instrument.TickSize.Decimal,
			LotSize:          cfg.Instrument.LotSize.Decimal,
		})
	}
}

func holdLimit(d config.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d.Std()
}

func paperOptions(cfg config.Config, external bool) paper.Options {
	tick := cfg.Paper.TickInterval.Std()
	switch {
	case external || cfg.Feed.URL != "":
		tick = 0
	case tick == 0:
		tick = defaultPaperTicking
	}
	return paper.Options{
		Symbol:       schema.Symbol(cfg.Symbol),
		Latency:      cfg.Paper.Latency.Std(),
		PostOnly:     cfg.Reconciler.PostOnly,
		TickInterval: tick,
		StartPrice:   cfg.Paper.StartPrice.Decimal,
		Volatility:   cfg.Paper.Volatility,
		SpreadBps:    cfg.Paper.SpreadBps,
		TickSize:     cfg.Instrument.TickSize.Decimal,
		Seed:         cfg.Paper.Seed,
	}
}

func engineConfig(cfg config.Config) engine.Config {
	r := cfg.Reconciler
	return engine.Config{
		Symbol:            schema.Symbol(cfg.Symbol),
		QueueSize:         cfg.Engine.QueueSize,
		RebalanceInterval: cfg.Engine.RebalanceInterval.Std(),
		ShutdownTimeout:   cfg.Engine.ShutdownTimeout.Std(),
		Tolerance: channel.Tolerance{
			Price: cfg.Tolerance.Price.Decimal,
			Size:  cfg.Tolerance.Size.Decimal,
		},
		Reconciler: reconciler.Config{
			Symbol:         schema.Symbol(cfg.Symbol),
			MaxOutstanding: r.MaxOutstanding,
			Rate:           r.Rate,
			Burst:          r.Burst,
			CommandTimeout: r.CommandTimeout.Std(),
			LotSize:        cfg.Instrument.LotSize.Decimal,
			PostOnly:       r.PostOnly,
			AdoptOnStartup: r.AdoptOnStartup,
			Retry: reconciler.RetryPolicy{
				MaxAttempts:         r.Retry.MaxAttempts,
				InitialInterval:     r.Retry.InitialInterval.Std(),
				MaxInterval:         r.Retry.MaxInterval.Std(),
				Multiplier:          r.Retry.Multiplier,
				RandomizationFactor: r.Retry.RandomizationFactor,
			},
		},
	}
}
