// Package reconciler turns channel actions into exchange commands and routes the results back.
package reconciler

import (
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
)

// Kind enumerates exchange commands.
type Kind uint8

const (
	KindPlace Kind = iota + 1
	KindCancel
	KindQuery
	KindOrphanCancel
)

func (k Kind) String() string {
	switch k {
	case KindPlace:
		return "place"
	case KindCancel:
		return "cancel"
	case KindQuery:
		return "query"
	case KindOrphanCancel:
		return "orphan_cancel"
	default:
		return "unknown"
	}
}

// Command is one queued exchange request.
type Command struct {
	ID        uint64
	Kind      Kind
	Channel   schema.ChannelID
	Order     schema.Order
	Reason    string
	NotBefore time.Time
}

// Result is the outcome of a dispatched command, delivered back on the event loop.
type Result struct {
	Command    Command
	ExchangeID string
	Open       []schema.Order
	Position   schema.PositionSnapshot
	Attempts   int
	Latency    time.Duration
	Err        error
}

// RetryPolicy bounds retries of transient failures.
type RetryPolicy struct {
	MaxAttempts         int
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultRetryPolicy retries three times starting at 200ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:         3,
		InitialInterval:     200 * time.Millisecond,
		MaxInterval:         2 * time.Second,
		Multiplier:          2,
		RandomizationFactor: 0.2,
	}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	if p.Multiplier >= 1 {
		b.Multiplier = p.Multiplier
	}
	if p.RandomizationFactor >= 0 {
		b.RandomizationFactor = p.RandomizationFactor
	}
	b.Reset()
	return b
}
