// Package async provides bounded worker pool utilities.
package async

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/namn-grg/dual-channel-bot/errs"
)

// Task represents a unit of work executed by the pool workers.
type Task func(context.Context) error

// Option customises a Pool.
type Option func(*Pool)

// WithErrorHandler receives errors returned by tasks.
func WithErrorHandler(fn func(error)) Option {
	return func(p *Pool) {
		p.onError = fn
	}
}

// WithPanicHandler receives values recovered from panicking tasks.
func WithPanicHandler(fn func(any)) Option {
	return func(p *Pool) {
		p.onPanic = fn
	}
}

// Pool is a bounded worker pool that rejects submissions when saturated.
type Pool struct {
	ctx    context.Context
	cancel context.CancelFunc
	jobs   chan job
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	active  atomic.Int64
	onError func(error)
	onPanic func(any)
}

type job struct {
	ctx context.Context
	fn  Task
}

// NewPool creates a worker pool with the given concurrency and queue depth.
func NewPool(workers, queue int, opts ...Option) (*Pool, error) {
	if workers <= 0 {
		return nil, errs.New("lib/async", errs.CodeInvalid, errs.WithMessage("workers must be >0"))
	}
	if queue < 0 {
		queue = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{ctx: ctx, cancel: cancel, jobs: make(chan job, queue)}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p, nil
}

// Submit schedules fn without blocking. It fails when the queue is full or the pool is closed.
func (p *Pool) Submit(ctx context.Context, fn Task) error {
	if fn == nil {
		return errs.New("lib/async", errs.CodeInvalid, errs.WithMessage("task must not be nil"))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("submit context: %w", err)
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errs.New("lib/async", errs.CodeUnavailable, errs.WithMessage("pool closed"))
	}
	select {
	case p.jobs <- job{ctx: ctx, fn: fn}:
		return nil
	default:
		return errs.New("lib/async", errs.CodeUnavailable, errs.WithMessage("pool at capacity"))
	}
}

// Active reports the number of queued plus running tasks.
func (p *Pool) Active() int {
	return int(p.active.Load()) + len(p.jobs)
}

// Close stops accepting tasks and cancels the context of running ones.
func (p *Pool) Close() {
	p.stop()
	p.cancel()
}

// Shutdown stops accepting tasks and waits for queued and running tasks to finish.
// Running tasks are cancelled if ctx expires first.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.stop()
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		p.cancel()
		return fmt.Errorf("shutdown context: %w", ctx.Err())
	case <-done:
		p.cancel()
		return nil
	}
}

func (p *Pool) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.jobs)
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		p.run(j)
	}
}

func (p *Pool) run(j job) {
	p.active.Add(1)
	defer p.active.Add(-1)
	defer func() {
		if r := recover(); r != nil && p.onPanic != nil {
			p.onPanic(r)
		}
	}()
	ctx, stop := mergeCancel(j.ctx, p.ctx)
	defer stop()
	if err := j.fn(ctx); err != nil && p.onError != nil {
		p.onError(err)
	}
}

// mergeCancel returns a context derived from parent that is also cancelled with other.
func mergeCancel(parent, other context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(other, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
