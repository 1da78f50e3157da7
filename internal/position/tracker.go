// Package position tracks the bot's net inventory and enforces the exposure limit.
package position

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
)

// Scope selects how the exposure limit is applied.
type Scope string

const (
	// ScopeGlobal bounds the combined net of all channels plus every working order.
	ScopeGlobal Scope = "global"
	// ScopePerChannel bounds each channel by its own fills plus its working order,
	// inside the global bound.
	ScopePerChannel Scope = "per_channel"
)

const (
	defaultTradeMemory  = 4096
	defaultReplayMemory = 1024
)

// Limits configures exposure checks.
type Limits struct {
	Scope        Scope
	MaxPosition  decimal.Decimal
	MaxOrderSize decimal.Decimal
	PerChannel   map[schema.ChannelID]decimal.Decimal
}

// Pending is the worst-case size of working orders not yet filled, split by side.
type Pending struct {
	Buy  decimal.Decimal
	Sell decimal.Decimal
}

// Add accumulates a working order's remaining size.
func (p Pending) Add(side schema.Side, size decimal.Decimal) Pending {
	if side == schema.SideBuy {
		p.Buy = p.Buy.Add(size)
	} else {
		p.Sell = p.Sell.Add(size)
	}
	return p
}

// Tracker maintains net size, average entry and realized PnL. Safe for concurrent readers;
// mutations happen on the event loop.
type Tracker struct {
	mu       sync.RWMutex
	limits   Limits
	net      decimal.Decimal
	avg      decimal.Decimal
	realized decimal.Decimal
	openedAt time.Time
	asOf     time.Time
	now      func() time.Time
	replay   []logged
	channels map[schema.ChannelID]decimal.Decimal
	trades   *recentSet
	fills    uint64
}

// Option customises a Tracker.
type Option func(*Tracker)

// WithTradeMemory bounds the number of trade ids remembered for de-duplication.
func WithTradeMemory(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.trades = newRecentSet(n)
		}
	}
}

// WithClock sets the clock used to stamp positions opened by fills without a time.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker constructs a flat tracker.
func NewTracker(limits Limits, opts ...Option) *Tracker {
	if limits.Scope == "" {
		limits.Scope = ScopeGlobal
	}
	t := &Tracker{
		limits:   limits,
		channels: make(map[schema.ChannelID]decimal.Decimal),
		trades:   newRecentSet(defaultTradeMemory),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Limits returns the configured limits.
func (t *Tracker) Limits() Limits {
	return t.limits
}

// ApplyFill folds a fill into the position. It returns false when the trade id was already applied.
func (t *Tracker) ApplyFill(channel schema.ChannelID, fill schema.Fill) bool {
	if !fill.Size.IsPositive() {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if fill.TradeID != "" && !t.trades.Add(fill.TradeID) {
		return false
	}
	t.fills++
	if t.covered(fill) {
		return true
	}
	t.apply(channel, fill)
	t.remember(channel, fill)
	return true
}

func (t *Tracker) apply(channel schema.ChannelID, fill schema.Fill) {
	signed := fill.Side.Signed(fill.Size)
	prev := t.net
	t.net, t.avg, t.realized = applySigned(t.net, t.avg, t.realized, signed, fill.Price)
	at := fill.Time
	if at.IsZero() {
		at = t.now()
	}
	t.age(prev, at)
	if channel != "" {
		t.channels[channel] = t.channels[channel].Add(signed)
	}
}

// applySigned adds signed size at price to a position, returning the new net, average entry and realized PnL.
func applySigned(net, avg, realized, signed, price decimal.Decimal) (decimal.Decimal, decimal.Decimal, decimal.Decimal) {
	next := net.Add(signed)
	if net.IsZero() || net.Sign() == signed.Sign() {
		notional := avg.Mul(net.Abs()).Add(price.Mul(signed.Abs()))
		return next, notional.Div(next.Abs()), realized
	}
	closing := decimal.Min(signed.Abs(), net.Abs())
	pnl := price.Sub(avg).Mul(closing)
	if net.IsNegative() {
		pnl = pnl.Neg()
	}
	realized = realized.Add(pnl)
	switch {
	case next.IsZero():
		return next, decimal.Zero, realized
	case next.Sign() != net.Sign():
		return next, price, realized
	default:
		return next, avg, realized
	}
}

// age restamps openedAt when the net left zero or crossed it.
func (t *Tracker) age(prev decimal.Decimal, at time.Time) {
	switch {
	case t.net.IsZero():
		t.openedAt = time.Time{}
	case prev.Sign() != t.net.Sign() || t.openedAt.IsZero():
		t.openedAt = at
	}
}

// Snapshot returns the current position.
func (t *Tracker) Snapshot() schema.PositionSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return schema.PositionSnapshot{NetSize: t.net, AvgEntryPrice: t.avg, RealizedPnL: t.realized, OpenedAt: t.openedAt}
}

// ChannelNet returns the net size attributed to fills of channel.
func (t *Tracker) ChannelNet(channel schema.ChannelID) decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.channels[channel]
}

// Fills counts applied fills.
func (t *Tracker) Fills() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fills
}

// Unrealized returns the mark-to-market PnL of the open position at mid.
func (t *Tracker) Unrealized(mid decimal.Decimal) decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.net.IsZero() || !mid.IsPositive() {
		return decimal.Zero
	}
	return mid.Sub(t.avg).Mul(t.net)
}

// Overwrite replaces the local view with an authoritative exchange position.
// It reports whether the local net size disagreed.
func (t *Tracker) Overwrite(snap schema.PositionSnapshot) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.overwrite(snap)
}

func (t *Tracker) overwrite(snap schema.PositionSnapshot) bool {
	diverged := !t.net.Equal(snap.NetSize)
	t.reset(snap)
	if diverged {
		// channel attribution is unrecoverable after a desync; keep the sum consistent.
		clear(t.channels)
	}
	return diverged
}

func (t *Tracker) reset(snap schema.PositionSnapshot) {
	t.asOf = snap.AsOf
	prev := t.net
	t.net = snap.NetSize
	if !snap.OpenedAt.IsZero() && !t.net.IsZero() {
		t.openedAt = snap.OpenedAt
	} else {
		t.age(prev, t.now())
	}
	t.avg = snap.AvgEntryPrice
	if t.net.IsZero() {
		t.avg = decimal.Zero
	}
	if !snap.RealizedPnL.IsZero() {
		t.realized = snap.RealizedPnL
	}
}

// CheckLimit reports whether adding size on side keeps worst-case exposure within the limit.
func (t *Tracker) CheckLimit(channel schema.ChannelID, side schema.Side, size decimal.Decimal, pending Pending) bool {
	return size.LessThanOrEqual(t.Headroom(channel, side, pending))
}

// Headroom returns the largest size that may be added on side without breaching the limit.
// Per-channel scope still keeps the whole net, including unattributed exchange position,
// within MaxPosition.
func (t *Tracker) Headroom(channel schema.ChannelID, side schema.Side, pending Pending) decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	room := sideRoom(t.limits.MaxPosition, t.net, side, pending)
	if t.limits.Scope != ScopePerChannel {
		return room
	}
	limit := t.limits.MaxPosition
	if l, ok := t.limits.PerChannel[channel]; ok {
		limit = l
	}
	return decimal.Min(room, sideRoom(limit, t.channels[channel], side, Pending{}))
}

func sideRoom(limit, net decimal.Decimal, side schema.Side, pending Pending) decimal.Decimal {
	if !limit.IsPositive() {
		return decimal.Zero
	}
	var room decimal.Decimal
	if side == schema.SideBuy {
		room = limit.Sub(net).Sub(pending.Buy)
	} else {
		room = limit.Add(net).Sub(pending.Sell)
	}
	if room.IsNegative() {
		return decimal.Zero
	}
	return room
}

// Clamp reduces size to the order cap and the available headroom, rounded down to lot.
func (t *Tracker) Clamp(channel schema.ChannelID, side schema.Side, size decimal.Decimal, pending Pending, lot decimal.Decimal) decimal.Decimal {
	if !size.IsPositive() {
		return decimal.Zero
	}
	if maxOrder := t.limits.MaxOrderSize; maxOrder.IsPositive() {
		size = decimal.Min(size, maxOrder)
	}
	size = decimal.Min(size, t.Headroom(channel, side, pending))
	if lot.IsPositive() {
		size = size.Div(lot).Floor().Mul(lot)
	}
	if !size.IsPositive() {
		return decimal.Zero
	}
	return size
}
