package paper

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
)

const (
	defaultOutbox     = 4096
	defaultVolatility = 0.0005
	defaultSpreadBps  = 2
)

// Options configures the simulated venue.
type Options struct {
	Symbol schema.Symbol
	// Latency delays every client call.
	Latency time.Duration
	// PostOnly rejects orders that would cross the last tick.
	PostOnly bool

	// TickInterval enables the synthetic random-walk feed when positive.
	TickInterval time.Duration
	StartPrice   decimal.Decimal
	// Volatility is the per-tick standard deviation of the mid as a fraction.
	Volatility float64
	SpreadBps  float64
	TickSize   decimal.Decimal
	Seed       uint64

	// Outbox bounds events buffered before a stream consumes them.
	Outbox int
	Clock  func() time.Time
}

func withDefaults(in Options) Options {
	if in.Outbox <= 0 {
		in.Outbox = defaultOutbox
	}
	if in.Volatility <= 0 {
		in.Volatility = defaultVolatility
	}
	if in.SpreadBps <= 0 {
		in.SpreadBps = defaultSpreadBps
	}
	if !in.StartPrice.IsPositive() {
		in.StartPrice = decimal.NewFromInt(100)
	}
	if in.Clock == nil {
		in.Clock = time.Now
	}
	return in
}
