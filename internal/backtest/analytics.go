package backtest

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
)

// Position is the view of the position tracker Analytics samples.
type Position interface {
	Snapshot() schema.PositionSnapshot
	Unrealized(mid decimal.Decimal) decimal.Decimal
	Fills() uint64
}

// Summary captures cumulative performance statistics for a replay.
type Summary struct {
	Ticks         int
	Fills         uint64
	NetSize       decimal.Decimal
	AvgEntryPrice decimal.Decimal
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	Equity        decimal.Decimal
	PeakEquity    decimal.Decimal
	MaxDrawdown   decimal.Decimal
	MaxAbsNet     decimal.Decimal
	LastMid       decimal.Decimal
}

// Analytics marks the position to market on every accepted tick. It implements the
// engine's tick recorder hook, so samples are taken on the engine loop after the
// cache update and before the policy runs.
type Analytics struct {
	pos Position

	mu      sync.Mutex
	summary Summary
}

// NewAnalytics samples pos.
func NewAnalytics(pos Position) *Analytics {
	return &Analytics{pos: pos}
}

// Record marks to market at the tick's mid.
func (a *Analytics) Record(tick schema.Tick) error {
	snap, err := tick.Snapshot()
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.summary.Ticks++
	a.summary.LastMid = snap.Mid
	a.mark()
	return nil
}

// Summary returns the statistics so far, re-marked at the last mid.
func (a *Analytics) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.summary.Ticks > 0 {
		a.mark()
	}
	return a.summary
}

func (a *Analytics) mark() {
	s := &a.summary
	pos := a.pos.Snapshot()
	s.Fills = a.pos.Fills()
	s.NetSize = pos.NetSize
	s.AvgEntryPrice = pos.AvgEntryPrice
	s.RealizedPnL = pos.RealizedPnL
	s.UnrealizedPnL = a.pos.Unrealized(s.LastMid)
	s.Equity = s.RealizedPnL.Add(s.UnrealizedPnL)
	if s.Equity.GreaterThan(s.PeakEquity) {
		s.PeakEquity = s.Equity
	}
	if dd := s.PeakEquity.Sub(s.Equity); dd.GreaterThan(s.MaxDrawdown) {
		s.MaxDrawdown = dd
	}
	if abs := pos.NetSize.Abs(); abs.GreaterThan(s.MaxAbsNet) {
		s.MaxAbsNet = abs
	}
}
