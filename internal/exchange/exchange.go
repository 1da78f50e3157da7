// Package exchange declares the venue collaborators the execution core depends on.
package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
)

// PlaceRequest describes a limit order. ClientID is stable across retries so the
// venue can de-duplicate a resent request.
type PlaceRequest struct {
	ClientID string
	Symbol   schema.Symbol
	Side     schema.Side
	Price    decimal.Decimal
	Size     decimal.Decimal
	PostOnly bool
}

// Client issues order commands. Implementations classify failures with errs codes:
// CodeNetwork/CodeRateLimited/CodeUnavailable for transient faults, CodeRejected for
// refused orders and CodeNotFound for unknown order ids.
type Client interface {
	PlaceOrder(ctx context.Context, req PlaceRequest) (string, error)
	CancelOrder(ctx context.Context, exchangeID string) error
	OpenOrders(ctx context.Context) ([]schema.Order, error)
	Position(ctx context.Context) (schema.PositionSnapshot, error)
}

// Sink receives stream events.
type Sink interface {
	Publish(ctx context.Context, ev schema.ExchangeEvent) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev schema.ExchangeEvent) error

// Publish implements Sink.
func (f SinkFunc) Publish(ctx context.Context, ev schema.ExchangeEvent) error {
	return f(ctx, ev)
}

// Stream delivers market data and order events until ctx is cancelled.
type Stream interface {
	Run(ctx context.Context, sink Sink) error
}
