package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/namn-grg/dual-channel-bot/errs"
	"github.com/namn-grg/dual-channel-bot/internal/channel"
	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
	"github.com/namn-grg/dual-channel-bot/internal/exchange"
	"github.com/namn-grg/dual-channel-bot/internal/journal"
	"github.com/namn-grg/dual-channel-bot/internal/observability"
	"github.com/namn-grg/dual-channel-bot/internal/position"
	"github.com/namn-grg/dual-channel-bot/internal/telemetry"
	"github.com/namn-grg/dual-channel-bot/lib/async"
)

const component = "reconciler"

// Notifier carries asynchronous completions back to the event loop.
type Notifier interface {
	// Complete delivers a command result. It is called from worker goroutines.
	Complete(Result)
	// WakeAfter asks for Pump to be called again after d.
	WakeAfter(d time.Duration)
}

// Config tunes dispatch.
type Config struct {
	Symbol         schema.Symbol
	MaxOutstanding int
	// Rate is the request budget per second; zero or negative disables rate limiting.
	Rate           float64
	Burst          int
	CommandTimeout time.Duration
	Retry          RetryPolicy
	LotSize        decimal.Decimal
	PostOnly       bool
	// AdoptOnStartup lets idle channels take over matching open orders found by the first query.
	AdoptOnStartup bool
}

func (c Config) withDefaults() Config {
	if c.MaxOutstanding <= 0 {
		c.MaxOutstanding = 4
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 5 * time.Second
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = DefaultRetryPolicy()
	}
	return c
}

// Option customises a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(r *Reconciler) {
		r.logger = observability.Or(logger)
	}
}

// WithJournal records order transitions.
func WithJournal(j journal.Journal) Option {
	return func(r *Reconciler) {
		if j != nil {
			r.journal = j
		}
	}
}

// WithClientIDs overrides client order id generation.
func WithClientIDs(fn func() string) Option {
	return func(r *Reconciler) {
		if fn != nil {
			r.newClientID = fn
		}
	}
}

// Reconciler owns the command queue. Every method except the pool workers runs on the event loop.
type Reconciler struct {
	cfg      Config
	client   exchange.Client
	tracker  *position.Tracker
	channels []*channel.Channel
	byID     map[schema.ChannelID]*channel.Channel
	notifier Notifier
	logger   observability.Logger
	journal  journal.Journal
	metrics  *metrics
	limiter  *rate.Limiter
	pool     *async.Pool

	newClientID func() string
	nextID      uint64

	queue       []Command
	busy        map[schema.ChannelID]bool
	placeQueued map[schema.ChannelID]bool
	inflight    int
	paused      bool

	queryQueued   bool
	queryInFlight bool
	queryAgain    bool
	queryMark     uint64
	queryBackoff  *backoff.ExponentialBackOff
	ready         bool
	adopting      bool

	orphans map[string]schema.Order
	wakeAt  time.Time
}

// New builds a reconciler dispatching on its own worker pool.
func New(cfg Config, client exchange.Client, tracker *position.Tracker, channels []*channel.Channel, notifier Notifier, opts ...Option) (*Reconciler, error) {
	if client == nil || tracker == nil || notifier == nil {
		return nil, errs.New(component, errs.CodeConfig, errs.WithMessage("client, tracker and notifier are required"))
	}
	if len(channels) == 0 {
		return nil, errs.New(component, errs.CodeConfig, errs.WithMessage("at least one channel is required"))
	}
	cfg = cfg.withDefaults()
	r := &Reconciler{
		cfg:          cfg,
		client:       client,
		tracker:      tracker,
		channels:     channels,
		byID:         make(map[schema.ChannelID]*channel.Channel, len(channels)),
		notifier:     notifier,
		logger:       observability.Log(),
		journal:      journal.Noop(),
		metrics:      newMetrics(),
		newClientID:  uuid.NewString,
		busy:         make(map[schema.ChannelID]bool),
		placeQueued:  make(map[schema.ChannelID]bool),
		orphans:      make(map[string]schema.Order),
		queryBackoff: cfg.Retry.newBackOff(),
		adopting:     cfg.AdoptOnStartup,
	}
	for _, ch := range channels {
		if _, dup := r.byID[ch.ID()]; dup {
			return nil, errs.New(component, errs.CodeConfig, errs.WithChannel(string(ch.ID())), errs.WithMessage("duplicate channel id"))
		}
		r.byID[ch.ID()] = ch
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	r.limiter = rate.NewLimiter(limit, cfg.Burst)

	pool, err := async.NewPool(cfg.MaxOutstanding, cfg.MaxOutstanding,
		async.WithPanicHandler(func(v any) {
			r.logger.Error("exchange command panicked", observability.F("panic", v))
		}))
	if err != nil {
		return nil, err
	}
	r.pool = pool
	return r, nil
}

// Channels returns the channels in evaluation order.
func (r *Reconciler) Channels() []*channel.Channel { return r.channels }

// Channel looks a channel up by id.
func (r *Reconciler) Channel(id schema.ChannelID) (*channel.Channel, bool) {
	ch, ok := r.byID[id]
	return ch, ok
}

// Ready reports whether a reconciliation query has been applied since start.
func (r *Reconciler) Ready() bool { return r.ready }

// QueryPending reports whether a reconciliation query is queued or in flight.
func (r *Reconciler) QueryPending() bool { return r.queryQueued || r.queryInFlight }

// Inflight returns the number of dispatched commands awaiting results.
func (r *Reconciler) Inflight() int { return r.inflight }

// Queued returns the number of commands waiting for dispatch.
func (r *Reconciler) Queued() int { return len(r.queue) }

// Orphans returns exchange orders the bot is trying to cancel on behalf of no channel.
func (r *Reconciler) Orphans() []schema.Order {
	out := make([]schema.Order, 0, len(r.orphans))
	for _, o := range r.orphans {
		out = append(out, o)
	}
	return out
}

// SetPaused stops or resumes dispatching. Results of in-flight commands are still applied.
func (r *Reconciler) SetPaused(paused bool) {
	r.paused = paused
}

// Apply queues the command a channel transition asked for.
func (r *Reconciler) Apply(act channel.Action) {
	switch act.Kind {
	case channel.ActionPlace:
		if r.placeQueued[act.Channel] {
			return
		}
		r.placeQueued[act.Channel] = true
		r.enqueue(Command{Kind: KindPlace, Channel: act.Channel})
	case channel.ActionCancel:
		for _, cmd := range r.queue {
			if cmd.Kind == KindCancel && cmd.Order.ExchangeID == act.Order.ExchangeID {
				return
			}
		}
		r.enqueue(Command{Kind: KindCancel, Channel: act.Channel, Order: act.Order})
	case channel.ActionOrphan:
		r.orphan(act.Order, act.Channel, true)
	}
}

// RequestQuery queues a reconciliation query, coalescing with any already pending.
func (r *Reconciler) RequestQuery(reason string) {
	switch {
	case r.queryQueued:
		return
	case r.queryInFlight:
		r.queryAgain = true
		return
	}
	r.queryQueued = true
	r.logger.Info("reconciliation query requested", observability.F("reason", reason))
	r.enqueueFront(Command{Kind: KindQuery, Reason: reason})
}

func (r *Reconciler) orphan(o schema.Order, owner schema.ChannelID, front bool) {
	if o.ExchangeID == "" {
		return
	}
	if _, pending := r.orphans[o.ExchangeID]; pending {
		return
	}
	r.orphans[o.ExchangeID] = o
	r.logger.Warn("cancelling orphan order",
		observability.F("channel", string(owner)),
		observability.F("order", o.ExchangeID),
		observability.F("client_id", o.ClientID))
	cmd := Command{Kind: KindOrphanCancel, Channel: owner, Order: o}
	if front {
		r.enqueueFront(cmd)
		return
	}
	r.enqueue(cmd)
}

func (r *Reconciler) enqueue(cmd Command) {
	r.nextID++
	cmd.ID = r.nextID
	r.queue = append(r.queue, cmd)
	r.metrics.depth.Store(int64(len(r.queue)))
}

func (r *Reconciler) enqueueFront(cmd Command) {
	r.nextID++
	cmd.ID = r.nextID
	r.queue = append([]Command{cmd}, r.queue...)
	r.metrics.depth.Store(int64(len(r.queue)))
}

// Pump dispatches queued commands in FIFO order subject to the per-channel, outstanding and rate limits.
func (r *Reconciler) Pump(now time.Time) {
	if !r.wakeAt.IsZero() && !now.Before(r.wakeAt) {
		r.wakeAt = time.Time{}
	}
	if r.paused || len(r.queue) == 0 {
		return
	}
	blocked := make(map[schema.ChannelID]bool)
	rest := make([]Command, 0, len(r.queue))
	halted := false
	var failed []Result
	for _, cmd := range r.queue {
		if halted || r.inflight >= r.cfg.MaxOutstanding {
			halted = true
			rest = append(rest, cmd)
			continue
		}
		if !r.dispatchable(cmd, blocked, now) {
			if cmd.Channel != "" {
				blocked[cmd.Channel] = true
			}
			rest = append(rest, cmd)
			continue
		}
		if r.stale(cmd) {
			r.drop(cmd)
			continue
		}
		if wait := r.reserve(now); wait > 0 {
			r.wake(now, wait)
			halted = true
			rest = append(rest, cmd)
			continue
		}
		if cmd.Kind == KindPlace {
			var ok bool
			if cmd, ok = r.sizePlacement(cmd); !ok {
				r.drop(cmd)
				continue
			}
		}
		if err := r.dispatch(cmd); err != nil {
			failed = append(failed, Result{Command: cmd, Err: err})
		}
	}
	r.queue = rest
	r.metrics.depth.Store(int64(len(r.queue)))
	for _, res := range failed {
		r.Complete(res, now)
	}
}

func (r *Reconciler) dispatchable(cmd Command, blocked map[schema.ChannelID]bool, now time.Time) bool {
	if cmd.Channel != "" && (r.busy[cmd.Channel] || blocked[cmd.Channel]) {
		return false
	}
	if now.Before(cmd.NotBefore) {
		r.wake(now, cmd.NotBefore.Sub(now))
		return false
	}
	switch cmd.Kind {
	case KindPlace:
		return !r.queryQueued && !r.queryInFlight && r.ready
	case KindQuery:
		return !r.queryInFlight
	}
	return true
}

// stale reports whether the channel moved on since the command was queued.
func (r *Reconciler) stale(cmd Command) bool {
	ch, ok := r.byID[cmd.Channel]
	switch cmd.Kind {
	case KindPlace:
		return !ok || ch.State() != channel.Desired
	case KindCancel:
		if !ok {
			return true
		}
		o, working := ch.Working()
		if !working || o.ExchangeID != cmd.Order.ExchangeID {
			return true
		}
		st := ch.State()
		return st != channel.Cancelling && st != channel.Replacing
	}
	return false
}

func (r *Reconciler) drop(cmd Command) {
	if cmd.Kind == KindPlace {
		r.placeQueued[cmd.Channel] = false
	}
	r.logger.Debug("dropped stale command",
		observability.F("kind", cmd.Kind.String()),
		observability.F("channel", string(cmd.Channel)),
		observability.F("order", cmd.Order.Ref()))
}

// sizePlacement clamps the channel's newest target against the exposure limit and
// moves the channel to Placing. A zero size skips the placement.
func (r *Reconciler) sizePlacement(cmd Command) (Command, bool) {
	ch := r.byID[cmd.Channel]
	target, ok := ch.Target()
	if !ok {
		ch.SkipPlace("paused")
		return cmd, false
	}
	size := r.tracker.Clamp(ch.ID(), ch.Side(), target.Size, r.pendingExcept(ch.ID()), r.cfg.LotSize)
	if !size.IsPositive() {
		ch.SkipPlace("exposure limit")
		r.logger.Info("placement skipped at exposure limit",
			observability.F("channel", string(ch.ID())),
			observability.F("side", string(ch.Side())),
			observability.F("target_size", target.Size.String()),
			observability.F("net_size", r.tracker.Snapshot().NetSize.String()))
		return cmd, false
	}
	order := schema.Order{ClientID: r.newClientID(), Price: target.Price, Size: size}
	if err := ch.BeginPlace(order); err != nil {
		r.logger.Error("begin place failed", observability.F("channel", string(ch.ID())), observability.F("error", err))
		return cmd, false
	}
	cmd.Order, _ = ch.Working()
	return cmd, true
}

// pendingExcept sums working orders of every other channel plus known orphans.
func (r *Reconciler) pendingExcept(id schema.ChannelID) position.Pending {
	var pending position.Pending
	for _, ch := range r.channels {
		if ch.ID() == id {
			continue
		}
		if o, ok := ch.Working(); ok {
			pending = pending.Add(o.Side, o.Remaining())
		}
	}
	for _, o := range r.orphans {
		if o.Side.Valid() {
			pending = pending.Add(o.Side, o.Remaining())
		}
	}
	return pending
}

func (r *Reconciler) reserve(now time.Time) time.Duration {
	res := r.limiter.ReserveN(now, 1)
	if !res.OK() {
		return time.Second
	}
	if d := res.DelayFrom(now); d > 0 {
		res.CancelAt(now)
		return d
	}
	return 0
}

func (r *Reconciler) wake(now time.Time, d time.Duration) {
	at := now.Add(d)
	if !r.wakeAt.IsZero() && !at.Before(r.wakeAt) {
		return
	}
	r.wakeAt = at
	r.notifier.WakeAfter(d)
}

func (r *Reconciler) dispatch(cmd Command) error {
	r.inflight++
	r.metrics.inflight.Store(int64(r.inflight))
	if cmd.Channel != "" {
		r.busy[cmd.Channel] = true
	}
	switch cmd.Kind {
	case KindPlace:
		r.placeQueued[cmd.Channel] = false
	case KindQuery:
		r.queryQueued = false
		r.queryInFlight = true
		r.queryMark = r.tracker.Mark()
	}
	r.logger.Debug("dispatching command",
		observability.F("kind", cmd.Kind.String()),
		observability.F("channel", string(cmd.Channel)),
		observability.F("order", cmd.Order.Ref()))
	// the pool is sized to MaxOutstanding, so Submit only fails after Close
	if err := r.pool.Submit(context.Background(), r.task(cmd)); err != nil {
		r.logger.Error("command submit failed", observability.F("kind", cmd.Kind.String()), observability.F("error", err))
		return err
	}
	return nil
}

func (r *Reconciler) task(cmd Command) async.Task {
	return func(ctx context.Context) error {
		start := time.Now()
		res := Result{Command: cmd}
		res.Attempts, res.Err = r.retry(ctx, cmd.Kind, func(ctx context.Context) error {
			switch cmd.Kind {
			case KindPlace:
				id, err := r.client.PlaceOrder(ctx, exchange.PlaceRequest{
					ClientID: cmd.Order.ClientID,
					Symbol:   r.cfg.Symbol,
					Side:     cmd.Order.Side,
					Price:    cmd.Order.Price,
					Size:     cmd.Order.Size,
					PostOnly: r.cfg.PostOnly,
				})
				res.ExchangeID = id
				return err
			case KindCancel, KindOrphanCancel:
				return r.client.CancelOrder(ctx, cmd.Order.ExchangeID)
			case KindQuery:
				open, err := r.client.OpenOrders(ctx)
				if err != nil {
					return err
				}
				pos, err := r.client.Position(ctx)
				if err != nil {
					return err
				}
				res.Open, res.Position = open, pos
				return nil
			default:
				return errs.New(component, errs.CodeInvalid, errs.WithMessage("unknown command kind"))
			}
		})
		res.Latency = time.Since(start)
		r.notifier.Complete(res)
		return nil
	}
}

// retry runs op with a per-attempt timeout, retrying transient failures on an exponential schedule.
func (r *Reconciler) retry(ctx context.Context, kind Kind, op func(context.Context) error) (int, error) {
	b := r.cfg.Retry.newBackOff()
	limit := r.cfg.Retry.attempts()
	for attempt := 1; ; attempt++ {
		err := r.attempt(ctx, op)
		if err == nil {
			return attempt, nil
		}
		if !errs.IsTransient(err) || attempt >= limit {
			return attempt, err
		}
		r.metrics.recordRetry(kind)
		sleep := b.NextBackOff()
		if sleep == backoff.Stop {
			return attempt, err
		}
		select {
		case <-ctx.Done():
			return attempt, fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-time.After(sleep):
		}
	}
}

func (r *Reconciler) attempt(ctx context.Context, op func(context.Context) error) error {
	actx, cancel := context.WithTimeout(ctx, r.cfg.CommandTimeout)
	defer cancel()
	err := op(actx)
	if err != nil && errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return errs.New(component, errs.CodeTimeout,
			errs.WithMessage(fmt.Sprintf("no response within %s", r.cfg.CommandTimeout)),
			errs.WithCause(err))
	}
	return err
}

// Complete applies a command result. It must be called on the event loop.
func (r *Reconciler) Complete(res Result, now time.Time) {
	cmd := res.Command
	r.inflight--
	r.metrics.inflight.Store(int64(r.inflight))
	if cmd.Channel != "" {
		r.busy[cmd.Channel] = false
	}
	switch cmd.Kind {
	case KindPlace:
		r.completePlace(res)
	case KindCancel:
		r.completeCancel(res)
	case KindOrphanCancel:
		r.completeOrphan(res)
	case KindQuery:
		r.completeQuery(res, now)
	}
}

func classify(err error) string {
	switch {
	case err == nil:
		return telemetry.ResultOK
	case errs.IsRejected(err):
		return telemetry.ResultRejected
	case errs.IsTimeout(err) || errs.IsTransient(err):
		return telemetry.ResultTimeout
	default:
		return telemetry.ResultError
	}
}

func (r *Reconciler) fields(res Result) []observability.Field {
	return []observability.Field{
		observability.F("channel", string(res.Command.Channel)),
		observability.F("order", res.Command.Order.Ref()),
		observability.F("client_id", res.Command.Order.ClientID),
		observability.F("attempts", res.Attempts),
	}
}

// owns reports whether the command's order is still the channel's working order.
func owns(ch *channel.Channel, order schema.Order) bool {
	o, ok := ch.Working()
	return ok && o.ClientID == order.ClientID
}

func (r *Reconciler) completePlace(res Result) {
	cmd := res.Command
	r.metrics.recordCommand(res, classify(res.Err))
	ch := r.byID[cmd.Channel]
	if res.Err == nil {
		order := cmd.Order
		order.ExchangeID = res.ExchangeID
		order.Status = schema.OrderOpen
		r.record(order)
		r.logger.Info("order placed", append(r.fields(res),
			observability.F("order", res.ExchangeID),
			observability.F("side", string(order.Side)),
			observability.F("price", order.Price.String()),
			observability.F("size", order.Size.String()))...)
		r.Apply(ch.OnPlaced(cmd.Order.ClientID, res.ExchangeID))
		return
	}
	if errs.IsRejected(res.Err) {
		order := cmd.Order
		order.Status = schema.OrderRejected
		order.Reason = res.Err.Error()
		r.record(order)
		r.logger.Warn("order rejected", append(r.fields(res), observability.F("error", res.Err))...)
		ch.OnRejected(cmd.Order.ClientID, res.Err.Error())
		return
	}
	r.logger.Error("place outcome unknown", append(r.fields(res), observability.F("error", res.Err))...)
	if owns(ch, cmd.Order) {
		ch.MarkUnknown()
	}
	r.RequestQuery("place " + classify(res.Err))
}

func (r *Reconciler) completeCancel(res Result) {
	cmd := res.Command
	r.metrics.recordCommand(res, classify(res.Err))
	ch := r.byID[cmd.Channel]
	if res.Err == nil || errs.IsNotFound(res.Err) {
		if owns(ch, cmd.Order) {
			order := cmd.Order
			order.Status = schema.OrderCancelled
			r.record(order)
		}
		r.logger.Info("order cancelled", r.fields(res)...)
		r.Apply(ch.OnCancelled(cmd.Order.ExchangeID, cmd.Order.ClientID))
		return
	}
	r.logger.Error("cancel outcome unknown", append(r.fields(res), observability.F("error", res.Err))...)
	if owns(ch, cmd.Order) {
		ch.MarkUnknown()
	}
	r.RequestQuery("cancel " + classify(res.Err))
}

func (r *Reconciler) completeOrphan(res Result) {
	cmd := res.Command
	r.metrics.recordCommand(res, classify(res.Err))
	delete(r.orphans, cmd.Order.ExchangeID)
	if res.Err == nil || errs.IsNotFound(res.Err) {
		r.logger.Info("orphan order cancelled", r.fields(res)...)
		return
	}
	r.logger.Error("orphan cancel failed", append(r.fields(res), observability.F("error", res.Err))...)
	r.RequestQuery("orphan cancel " + classify(res.Err))
}

func (r *Reconciler) completeQuery(res Result, now time.Time) {
	r.queryInFlight = false
	r.metrics.recordCommand(res, classify(res.Err))
	if res.Err != nil {
		delay := r.queryBackoff.NextBackOff()
		r.logger.Error("reconciliation query failed",
			observability.F("reason", res.Command.Reason),
			observability.F("retry_in", delay.String()),
			observability.F("error", res.Err))
		r.queryQueued = true
		r.queryAgain = false
		r.enqueueFront(Command{Kind: KindQuery, Reason: res.Command.Reason, NotBefore: now.Add(delay)})
		return
	}
	r.queryBackoff.Reset()
	r.applyQuery(res)
	if r.queryAgain {
		r.queryAgain = false
		r.RequestQuery("coalesced")
	}
}

// applyQuery makes the exchange's view authoritative: channels resolve against the
// open orders, unowned orders are adopted at startup or cancelled, and the position is rebased.
func (r *Reconciler) applyQuery(res Result) {
	claimed := make(map[string]bool, len(res.Open))
	for _, ch := range r.channels {
		before, had := ch.Working()
		id, act := ch.Resolve(res.Open)
		if id != "" {
			claimed[id] = true
		} else if had {
			r.logger.Warn("state desync: order absent on exchange",
				observability.F("channel", string(ch.ID())),
				observability.F("order", before.Ref()),
				observability.F("error", errs.New(component, errs.CodeDesync, errs.WithChannel(string(ch.ID())), errs.WithOrder(before.Ref()))))
		}
		r.Apply(act)
	}
	for _, o := range res.Open {
		if claimed[o.ExchangeID] {
			continue
		}
		if _, pending := r.orphans[o.ExchangeID]; pending {
			continue
		}
		if r.adopting && r.adopt(o) {
			continue
		}
		r.orphan(o, "", false)
	}
	r.adopting = false

	local := r.tracker.Snapshot()
	// fills applied while the query was out are replayed unless the snapshot already holds them
	if r.tracker.Rebase(res.Position, r.queryMark) {
		r.logger.Warn("state desync: position overwritten",
			observability.F("local_net", local.NetSize.String()),
			observability.F("exchange_net", res.Position.NetSize.String()))
	}
	r.ready = true
	r.logger.Info("reconciliation applied",
		observability.F("reason", res.Command.Reason),
		observability.F("open_orders", len(res.Open)),
		observability.F("net_size", res.Position.NetSize.String()))
}

func (r *Reconciler) adopt(o schema.Order) bool {
	for _, ch := range r.channels {
		if ch.Adopt(o) {
			r.logger.Info("adopted open order",
				observability.F("channel", string(ch.ID())),
				observability.F("order", o.ExchangeID),
				observability.F("price", o.Price.String()),
				observability.F("size", o.Size.String()))
			return true
		}
	}
	return false
}

func (r *Reconciler) record(order schema.Order) {
	order.UpdatedAt = time.Now()
	if err := r.journal.RecordOrder(context.Background(), order); err != nil {
		r.logger.Debug("journal order skipped", observability.F("order", order.Ref()), observability.F("error", err))
	}
}

// Close stops the worker pool, waiting for in-flight commands until ctx expires.
func (r *Reconciler) Close(ctx context.Context) error {
	return r.pool.Shutdown(ctx)
}
