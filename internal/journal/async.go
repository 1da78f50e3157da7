package journal

import (
	"context"
	"time"

	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
	"github.com/namn-grg/dual-channel-bot/internal/observability"
	"github.com/namn-grg/dual-channel-bot/lib/async"
)

// Async writes to an underlying journal on a worker pool so callers never block.
// Records are dropped, with a warning, when the pool is saturated.
type Async struct {
	next    Journal
	pool    *async.Pool
	timeout time.Duration
	logger  observability.Logger
}

// NewAsync wraps next with a pool of workers and a bounded queue.
func NewAsync(next Journal, workers, queue int, timeout time.Duration, logger observability.Logger) (*Async, error) {
	logger = observability.Or(logger)
	pool, err := async.NewPool(workers, queue,
		async.WithErrorHandler(func(err error) {
			logger.Warn("journal write failed", observability.F("error", err))
		}),
		async.WithPanicHandler(func(v any) {
			logger.Error("journal write panicked", observability.F("panic", v))
		}),
	)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Async{next: next, pool: pool, timeout: timeout, logger: logger}, nil
}

// RecordOrder queues an order record.
func (a *Async) RecordOrder(_ context.Context, order schema.Order) error {
	return a.submit("order", order.Ref(), func(ctx context.Context) error {
		return a.next.RecordOrder(ctx, order)
	})
}

// RecordFill queues a fill record.
func (a *Async) RecordFill(_ context.Context, channel schema.ChannelID, fill schema.Fill) error {
	return a.submit("fill", fill.TradeID, func(ctx context.Context) error {
		return a.next.RecordFill(ctx, channel, fill)
	})
}

func (a *Async) submit(kind, ref string, fn func(context.Context) error) error {
	err := a.pool.Submit(context.Background(), func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		return fn(ctx)
	})
	if err != nil {
		a.logger.Warn("journal record dropped", observability.F("kind", kind), observability.F("ref", ref), observability.F("error", err))
	}
	return err
}

// Close waits for queued writes to finish.
func (a *Async) Close(ctx context.Context) error {
	return a.pool.Shutdown(ctx)
}
