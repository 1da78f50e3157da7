// Package app assembles the bot from a resolved configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/namn-grg/dual-channel-bot/internal/config"
	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
	"github.com/namn-grg/dual-channel-bot/internal/engine"
	"github.com/namn-grg/dual-channel-bot/internal/exchange"
	"github.com/namn-grg/dual-channel-bot/internal/exchange/paper"
	"github.com/namn-grg/dual-channel-bot/internal/exchange/wsfeed"
	"github.com/namn-grg/dual-channel-bot/internal/market"
	"github.com/namn-grg/dual-channel-bot/internal/observability"
	"github.com/namn-grg/dual-channel-bot/internal/position"
	"github.com/namn-grg/dual-channel-bot/internal/telemetry"
)

const (
	meterName           = "dualbot"
	defaultPaperTicking = time.Second
	abortTimeout        = 5 * time.Second
)

type options struct {
	streams   []func(*Bot) exchange.Stream
	recorders []func(*Bot) engine.TickRecorder
	external  bool
}

// Option customises Assemble.
type Option func(*options)

// WithStream adds a stream. build runs once Venue and Tracker are set.
func WithStream(build func(b *Bot) exchange.Stream) Option {
	return func(o *options) {
		o.streams = append(o.streams, build)
	}
}

// WithRecorder adds a hook that sees every accepted tick. build runs once Venue and Tracker are set.
func WithRecorder(build func(b *Bot) engine.TickRecorder) Option {
	return func(o *options) {
		o.recorders = append(o.recorders, build)
	}
}

// WithExternalMarket disables the synthetic random walk and the websocket feed;
// market data must come from a stream added with WithStream.
func WithExternalMarket() Option {
	return func(o *options) {
		o.external = true
	}
}

type shutdownStep struct {
	name string
	fn   func(context.Context) error
}

// Bot is an assembled engine with its collaborators.
type Bot struct {
	Engine  *engine.Engine
	Tracker *position.Tracker
	Venue   *paper.Exchange

	steps []shutdownStep
}

func (b *Bot) onShutdown(name string, fn func(context.Context) error) {
	b.steps = append(b.steps, shutdownStep{name: name, fn: fn})
}

// Close releases everything Assemble opened, in reverse order. Call it after Engine.Run returns.
func (b *Bot) Close(ctx context.Context) error {
	var errList []error
	for i := len(b.steps) - 1; i >= 0; i-- {
		step := b.steps[i]
		if err := step.fn(ctx); err != nil {
			errList = append(errList, fmt.Errorf("%s: %w", step.name, err))
			continue
		}
		observability.Log().Debug("shutdown step completed", observability.F("step", step.name))
	}
	b.steps = nil
	return observability.AggregateErrors("shutdown", errList)
}

// Assemble builds the engine described by cfg. On error everything opened so far is released.
func Assemble(ctx context.Context, cfg config.Config, logger observability.Logger, opts ...Option) (b *Bot, err error) {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	logger = observability.Or(logger)

	b = &Bot{}
	defer func() {
		if err != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), abortTimeout)
			defer cancel()
			_ = b.Close(closeCtx)
			b = nil
		}
	}()

	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.EnableMetrics,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
		MetricInterval: cfg.Telemetry.MetricInterval.Std(),
		ServiceName:    cfg.Telemetry.ServiceName,
		Environment:    string(cfg.Network),
	})
	if err != nil {
		return b, fmt.Errorf("initialize telemetry: %w", err)
	}
	b.onShutdown("telemetry", provider.Shutdown)
	if provider.Enabled() {
		logger.Info("telemetry initialized",
			observability.F("endpoint", cfg.Telemetry.OTLPEndpoint),
			observability.F("service", cfg.Telemetry.ServiceName))
	}

	symbol := schema.Symbol(cfg.Symbol)
	b.Tracker = position.NewTracker(positionLimits(cfg))
	if err := b.Tracker.RegisterMetrics(provider.Meter(meterName), cfg.Symbol); err != nil {
		return b, fmt.Errorf("register position metrics: %w", err)
	}

	channels, err := buildChannels(cfg)
	if err != nil {
		return b, err
	}
	policy, err := buildPolicy(cfg, logger)
	if err != nil {
		return b, err
	}

	b.Venue = paper.New(paperOptions(cfg, o.external))
	streams := []exchange.Stream{b.Venue}
	if cfg.Feed.URL != "" && !o.external {
		feed, err := wsfeed.New(wsfeed.Options{
			URL:          cfg.Feed.URL,
			Symbol:       symbol,
			VenueSymbol:  cfg.Feed.VenueSymbol,
			Subscribe:    cfg.Feed.Subscribe,
			PingInterval: cfg.Feed.PingInterval.Std(),
			Logger:       observability.With(logger, observability.F("component", "wsfeed")),
		})
		if err != nil {
			return b, err
		}
		streams = append(streams, bridgeFeed(feed, b.Venue))
		logger.Info("market feed configured", observability.F("url", cfg.Feed.URL))
	}
	for _, build := range o.streams {
		streams = append(streams, build(b))
	}

	engineOpts := []engine.Option{engine.WithLogger(logger)}
	if cfg.Journal.DSN != "" {
		j, err := openJournal(ctx, b, cfg, logger)
		if err != nil {
			return b, err
		}
		engineOpts = append(engineOpts, engine.WithJournal(j))
	}
	var recorders []engine.TickRecorder
	if cfg.Market.RecordPath != "" {
		rec, err := market.OpenRecorder(cfg.Market.RecordPath)
		if err != nil {
			return b, fmt.Errorf("open tick recorder: %w", err)
		}
		b.onShutdown("tick recorder", func(context.Context) error { return rec.Close() })
		recorders = append(recorders, rec)
	}
	for _, build := range o.recorders {
		recorders = append(recorders, build(b))
	}
	switch len(recorders) {
	case 0:
	case 1:
		engineOpts = append(engineOpts, engine.WithRecorder(recorders[0]))
	default:
		engineOpts = append(engineOpts, engine.WithRecorder(recorderSet(recorders)))
	}

	b.Engine, err = engine.New(engineConfig(cfg), engine.Deps{
		Client:   b.Venue,
		Streams:  streams,
		Policy:   policy,
		Tracker:  b.Tracker,
		Cache:    market.NewCache(symbol, cfg.Engine.StaleAfter.Std()),
		Channels: channels,
	}, engineOpts...)
	if err != nil {
		return b, err
	}
	return b, nil
}

type recorderSet []engine.TickRecorder

func (s recorderSet) Record(tick schema.Tick) error {
	var errList []error
	for _, rec := range s {
		if err := rec.Record(tick); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

// bridgeFeed routes external ticks through the paper venue so resting orders fill
// against real prices. Connection events go straight to the engine.
func bridgeFeed(feed *wsfeed.Feed, venue *paper.Exchange) exchange.Stream {
	return feedBridge{feed: feed, venue: venue}
}

type feedBridge struct {
	feed  *wsfeed.Feed
	venue *paper.Exchange
}

func (f feedBridge) Run(ctx context.Context, sink exchange.Sink) error {
	return f.feed.Run(ctx, exchange.SinkFunc(func(ctx context.Context, ev schema.ExchangeEvent) error {
		if ev.Kind == schema.EventTick {
			f.venue.Tick(ev.Tick)
			return nil
		}
		return sink.Publish(ctx, ev)
	}))
}
