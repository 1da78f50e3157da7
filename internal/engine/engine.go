// Package engine runs the single-threaded event loop that owns channel and position state.
package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/namn-grg/dual-channel-bot/errs"
	"github.com/namn-grg/dual-channel-bot/internal/channel"
	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
	"github.com/namn-grg/dual-channel-bot/internal/exchange"
	"github.com/namn-grg/dual-channel-bot/internal/journal"
	"github.com/namn-grg/dual-channel-bot/internal/market"
	"github.com/namn-grg/dual-channel-bot/internal/observability"
	"github.com/namn-grg/dual-channel-bot/internal/position"
	"github.com/namn-grg/dual-channel-bot/internal/reconciler"
	"github.com/namn-grg/dual-channel-bot/internal/strategy"
)

const component = "engine"

// ErrStopped is returned by Publish once the loop no longer accepts events.
var ErrStopped = errors.New("engine stopped")

// Config tunes the event loop.
type Config struct {
	Symbol            schema.Symbol
	QueueSize         int
	RebalanceInterval time.Duration
	ShutdownTimeout   time.Duration
	Tolerance         channel.Tolerance
	Reconciler        reconciler.Config
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.RebalanceInterval <= 0 {
		c.RebalanceInterval = time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.Reconciler.Symbol == "" {
		c.Reconciler.Symbol = c.Symbol
	}
	return c
}

// Deps are the collaborators the engine drives.
type Deps struct {
	Client   exchange.Client
	Streams  []exchange.Stream
	Policy   strategy.Policy
	Tracker  *position.Tracker
	Cache    *market.Cache
	Channels []*channel.Channel
}

// TickRecorder persists ticks as they are accepted.
type TickRecorder interface {
	Record(tick schema.Tick) error
}

// Option customises an Engine.
type Option func(*Engine)

// WithLogger sets the logger shared with the reconciler.
func WithLogger(logger observability.Logger) Option {
	return func(e *Engine) {
		e.logger = observability.Or(logger)
	}
}

// WithJournal records orders and fills.
func WithJournal(j journal.Journal) Option {
	return func(e *Engine) {
		if j != nil {
			e.journal = j
		}
	}
}

// WithRecorder records every accepted tick.
func WithRecorder(rec TickRecorder) Option {
	return func(e *Engine) {
		e.recorder = rec
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithReconcilerOptions forwards options to the reconciler.
func WithReconcilerOptions(opts ...reconciler.Option) Option {
	return func(e *Engine) {
		e.reconOpts = append(e.reconOpts, opts...)
	}
}

type eventKind uint8

const (
	kindExchange eventKind = iota
	kindResult
	kindWake
	kindInspect
)

type event struct {
	kind    eventKind
	ex      schema.ExchangeEvent
	res     reconciler.Result
	inspect chan<- []ChannelStatus
}

// ChannelStatus is a point-in-time view of one channel.
type ChannelStatus struct {
	ID      schema.ChannelID
	Side    schema.Side
	State   channel.State
	Reason  string
	Order   schema.Order
	Working bool
}

// Engine serialises every Channel and Position mutation on one goroutine.
type Engine struct {
	cfg       Config
	client    exchange.Client
	streams   []exchange.Stream
	policy    strategy.Policy
	tracker   *position.Tracker
	cache     *market.Cache
	channels  []*channel.Channel
	recon     *reconciler.Reconciler
	reconOpts []reconciler.Option
	journal   journal.Journal
	recorder  TickRecorder
	logger    observability.Logger
	metrics   *metrics
	now       func() time.Time

	events  chan event
	stopped chan struct{}
	started atomic.Bool

	closing      bool
	disconnected bool
	unconfirmed  []schema.Order
}

// New wires the engine and its reconciler.
func New(cfg Config, deps Deps, opts ...Option) (*Engine, error) {
	if deps.Client == nil || deps.Policy == nil || deps.Tracker == nil || deps.Cache == nil {
		return nil, errs.New(component, errs.CodeConfig, errs.WithMessage("client, policy, tracker and cache are required"))
	}
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:      cfg,
		client:   deps.Client,
		streams:  deps.Streams,
		policy:   deps.Policy,
		tracker:  deps.Tracker,
		cache:    deps.Cache,
		channels: deps.Channels,
		journal:  journal.Noop(),
		logger:   observability.Log(),
		now:      time.Now,
		events:   make(chan event, cfg.QueueSize),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	reconOpts := append([]reconciler.Option{
		reconciler.WithLogger(e.logger),
		reconciler.WithJournal(e.journal),
	}, e.reconOpts...)
	recon, err := reconciler.New(cfg.Reconciler, deps.Client, deps.Tracker, deps.Channels, e, reconOpts...)
	if err != nil {
		return nil, err
	}
	e.recon = recon
	e.metrics = newMetrics(string(cfg.Symbol))
	return e, nil
}

// Publish implements exchange.Sink. It blocks while the queue is full.
func (e *Engine) Publish(ctx context.Context, ev schema.ExchangeEvent) error {
	if e.isStopped() {
		return ErrStopped
	}
	select {
	case e.events <- event{kind: kindExchange, ex: ev}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stopped:
		return ErrStopped
	}
}

// Complete implements reconciler.Notifier.
func (e *Engine) Complete(res reconciler.Result) {
	select {
	case e.events <- event{kind: kindResult, res: res}:
	case <-e.stopped:
	}
}

// WakeAfter implements reconciler.Notifier.
func (e *Engine) WakeAfter(d time.Duration) {
	time.AfterFunc(d, func() {
		select {
		case e.events <- event{kind: kindWake}:
		case <-e.stopped:
		default:
			// a full queue pumps soon anyway
		}
	})
}

// Status reads every channel's state on the event loop.
func (e *Engine) Status(ctx context.Context) ([]ChannelStatus, error) {
	if e.isStopped() {
		return nil, ErrStopped
	}
	reply := make(chan []ChannelStatus, 1)
	select {
	case e.events <- event{kind: kindInspect, inspect: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.stopped:
		return nil, ErrStopped
	}
	select {
	case out := <-reply:
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.stopped:
		return nil, ErrStopped
	}
}

func (e *Engine) isStopped() bool {
	select {
	case <-e.stopped:
		return true
	default:
		return false
	}
}

func (e *Engine) status() []ChannelStatus {
	out := make([]ChannelStatus, 0, len(e.channels))
	for _, ch := range e.channels {
		order, working := ch.Working()
		out = append(out, ChannelStatus{
			ID:      ch.ID(),
			Side:    ch.Side(),
			State:   ch.State(),
			Reason:  ch.Reason(),
			Order:   order,
			Working: working,
		})
	}
	return out
}

// Unconfirmed returns the orders still working when the last shutdown gave up waiting.
func (e *Engine) Unconfirmed() []schema.Order {
	return append([]schema.Order(nil), e.unconfirmed...)
}

// Run processes events until ctx is cancelled, then drains working orders.
// Streams keep running until the drain completes so cancel acknowledgements arrive.
func (e *Engine) Run(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return errs.New(component, errs.CodeInvalid, errs.WithMessage("engine already started"))
	}

	workCtx, stopWork := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWork()

	var streams conc.WaitGroup
	for _, s := range e.streams {
		streams.Go(func() {
			if err := s.Run(workCtx, e); err != nil && !errors.Is(err, context.Canceled) {
				e.logger.Error("stream stopped", observability.F("error", err))
			}
		})
	}

	e.logger.Info("engine started",
		observability.F("symbol", string(e.cfg.Symbol)),
		observability.F("policy", e.policy.Name()),
		observability.F("channels", len(e.channels)))
	e.recon.RequestQuery("startup")
	e.recon.Pump(e.now())

	ticker := time.NewTicker(e.cfg.RebalanceInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case ev := <-e.events:
			e.handle(ev)
		case <-ticker.C:
			e.evaluate("rebalance")
		}
		e.recon.Pump(e.now())
	}

	e.drain()
	close(e.stopped)
	stopWork()
	streams.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), e.cfg.ShutdownTimeout)
	defer cancel()
	if err := e.recon.Close(closeCtx); err != nil {
		e.logger.Warn("reconciler close", observability.F("error", err))
	}
	snap := e.tracker.Snapshot()
	e.logger.Info("engine stopped",
		observability.F("net_size", snap.NetSize.String()),
		observability.F("avg_entry", snap.AvgEntryPrice.String()),
		observability.F("realized_pnl", snap.RealizedPnL.String()),
		observability.F("unconfirmed", len(e.unconfirmed)))
	return nil
}
