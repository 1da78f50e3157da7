package schema

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrCrossedTick reports a tick whose mid lies outside its bid/ask.
	ErrCrossedTick = errors.New("tick mid outside bid/ask")
	// ErrEmptyTick reports a tick without any usable price.
	ErrEmptyTick = errors.New("tick carries no price")
)

var two = decimal.NewFromInt(2)

// Tick is a market-data update from the feed.
type Tick struct {
	Symbol  Symbol
	BestBid decimal.Decimal
	BestAsk decimal.Decimal
	Mid     decimal.Decimal
	Time    time.Time
}

// MarketSnapshot is the last known top of book; replaced wholesale on every tick.
type MarketSnapshot struct {
	BestBid decimal.Decimal
	BestAsk decimal.Decimal
	Mid     decimal.Decimal
	Time    time.Time
}

// Snapshot validates the tick and derives a snapshot from it.
// Mid defaults to (bid+ask)/2 when both sides are present.
func (t Tick) Snapshot() (MarketSnapshot, error) {
	bid, ask, mid := t.BestBid, t.BestAsk, t.Mid
	hasBid, hasAsk := bid.IsPositive(), ask.IsPositive()
	if !mid.IsPositive() {
		switch {
		case hasBid && hasAsk:
			mid = bid.Add(ask).Div(two)
		case hasBid:
			mid = bid
		case hasAsk:
			mid = ask
		default:
			return MarketSnapshot{}, ErrEmptyTick
		}
	}
	if hasBid && hasAsk && (bid.GreaterThan(mid) || mid.GreaterThan(ask)) {
		return MarketSnapshot{}, ErrCrossedTick
	}
	return MarketSnapshot{BestBid: bid, BestAsk: ask, Mid: mid, Time: t.Time}, nil
}
