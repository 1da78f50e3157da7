package backtest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
	"github.com/namn-grg/dual-channel-bot/internal/exchange"
)

// Venue is the simulated exchange ticks are replayed into.
type Venue interface {
	Tick(tick schema.Tick)
}

// ReplayOptions configure a Replay.
type ReplayOptions struct {
	Ticks []schema.Tick
	Venue Venue
	// Pace is the wall-clock gap between ticks.
	Pace time.Duration
	// OnDone runs once after the last tick has been handed to the venue.
	OnDone func()
	Clock  func() time.Time
}

// Replay is an exchange.Stream that feeds recorded ticks into the venue, which
// publishes them and fills resting orders they trade through. Ticks are re-stamped
// with the wall clock so staleness checks follow the replay pace.
type Replay struct {
	opts     ReplayOptions
	replayed atomic.Int64
}

// NewReplay builds a Replay.
func NewReplay(opts ReplayOptions) *Replay {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Replay{opts: opts}
}

// Replayed returns how many ticks have been handed to the venue.
func (r *Replay) Replayed() int {
	return int(r.replayed.Load())
}

// Run implements exchange.Stream. Order events reach the sink through the venue's own
// stream, so sink is unused.
func (r *Replay) Run(ctx context.Context, _ exchange.Sink) error {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for i, tick := range r.opts.Ticks {
		if err := ctx.Err(); err != nil {
			return err
		}
		tick.Time = r.opts.Clock()
		r.opts.Venue.Tick(tick)
		r.replayed.Add(1)
		if r.opts.Pace <= 0 || i == len(r.opts.Ticks)-1 {
			continue
		}
		if timer == nil {
			timer = time.NewTimer(r.opts.Pace)
		} else {
			timer.Reset(r.opts.Pace)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	if r.opts.OnDone != nil {
		r.opts.OnDone()
	}
	return nil
}
