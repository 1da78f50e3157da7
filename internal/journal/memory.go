package journal

import (
	"context"
	"sync"

	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
)

// FillEntry is a fill with its owning channel.
type FillEntry struct {
	Channel schema.ChannelID
	Fill    schema.Fill
}

// Memory keeps records in process; used by paper trading and tests.
type Memory struct {
	mu     sync.Mutex
	orders []schema.Order
	fills  []FillEntry
}

// NewMemory returns an empty in-memory journal.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) RecordOrder(_ context.Context, order schema.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, order)
	return nil
}

func (m *Memory) RecordFill(_ context.Context, channel schema.ChannelID, fill schema.Fill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fills = append(m.fills, FillEntry{Channel: channel, Fill: fill})
	return nil
}

// Orders returns a copy of recorded orders.
func (m *Memory) Orders() []schema.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]schema.Order(nil), m.orders...)
}

// Fills returns a copy of recorded fills.
func (m *Memory) Fills() []FillEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]FillEntry(nil), m.fills...)
}
