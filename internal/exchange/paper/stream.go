package paper

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"

	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
	"github.com/namn-grg/dual-channel-bot/internal/exchange"
)

// Run implements exchange.Stream. It delivers venue events to sink in order and, when
// TickInterval is set, drives a synthetic random-walk market.
func (e *Exchange) Run(ctx context.Context, sink exchange.Sink) error {
	if sink == nil {
		return errors.New("paper stream: sink required")
	}
	var wg conc.WaitGroup
	if e.opts.TickInterval > 0 {
		wg.Go(func() { e.walk(ctx) })
	}
	wg.Go(func() { e.deliver(ctx, sink) })
	wg.Wait()
	return ctx.Err()
}

func (e *Exchange) deliver(ctx context.Context, sink exchange.Sink) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-e.outbox:
			if err := sink.Publish(ctx, ev); err != nil {
				return
			}
		}
	}
}

func (e *Exchange) walk(ctx context.Context) {
	seed := e.opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	mid := e.opts.StartPrice.InexactFloat64()
	half := e.opts.SpreadBps / 2 / 10_000

	ticker := time.NewTicker(e.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		mid *= 1 + rng.NormFloat64()*e.opts.Volatility
		if mid <= 0 {
			mid = e.opts.StartPrice.InexactFloat64()
		}
		bid := e.round(decimal.NewFromFloat(mid * (1 - half)))
		ask := e.round(decimal.NewFromFloat(mid * (1 + half)))
		if !ask.GreaterThan(bid) {
			ask = bid.Add(e.opts.TickSize)
		}
		e.Tick(schema.Tick{BestBid: bid, BestAsk: ask})
	}
}

func (e *Exchange) round(v decimal.Decimal) decimal.Decimal {
	if !e.opts.TickSize.IsPositive() {
		return v.Round(8)
	}
	return v.Div(e.opts.TickSize).Round(0).Mul(e.opts.TickSize)
}
