// Package journal records order lifecycle changes and fills for audit.
package journal

import (
	"context"

	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
)

// Journal persists order and fill records. Failures never affect trading.
type Journal interface {
	RecordOrder(ctx context.Context, order schema.Order) error
	RecordFill(ctx context.Context, channel schema.ChannelID, fill schema.Fill) error
}

type noop struct{}

// Noop returns a journal that discards everything.
func Noop() Journal { return noop{} }

func (noop) RecordOrder(context.Context, schema.Order) error                  { return nil }
func (noop) RecordFill(context.Context, schema.ChannelID, schema.Fill) error { return nil }
