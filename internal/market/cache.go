// Package market holds the latest top-of-book snapshot for the quoted symbol.
package market

import (
	"sync/atomic"
	"time"

	"github.com/namn-grg/dual-channel-bot/errs"
	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
)

// Cache keeps the most recent MarketSnapshot. Readers never observe a partial update.
type Cache struct {
	symbol     schema.Symbol
	staleAfter time.Duration
	current    atomic.Pointer[schema.MarketSnapshot]
	rejected   atomic.Uint64
}

// NewCache constructs a cache for symbol. A zero staleAfter disables staleness checks.
func NewCache(symbol schema.Symbol, staleAfter time.Duration) *Cache {
	return &Cache{symbol: symbol, staleAfter: staleAfter}
}

// Update replaces the snapshot with one derived from tick.
// Ticks for another symbol, crossed ticks and ticks older than the current snapshot are rejected.
func (c *Cache) Update(tick schema.Tick) error {
	if tick.Symbol != "" && c.symbol != "" && tick.Symbol != c.symbol {
		c.rejected.Add(1)
		return errs.New("market", errs.CodeInvalid, errs.WithMessage("tick for unexpected symbol "+string(tick.Symbol)))
	}
	snap, err := tick.Snapshot()
	if err != nil {
		c.rejected.Add(1)
		return errs.New("market", errs.CodeInvalid, errs.WithMessage("invalid tick"), errs.WithCause(err))
	}
	if prev := c.current.Load(); prev != nil && !snap.Time.IsZero() && snap.Time.Before(prev.Time) {
		c.rejected.Add(1)
		return errs.New("market", errs.CodeInvalid, errs.WithMessage("out of order tick"))
	}
	c.current.Store(&snap)
	return nil
}

// Read returns the current snapshot, if any.
func (c *Cache) Read() (schema.MarketSnapshot, bool) {
	snap := c.current.Load()
	if snap == nil {
		return schema.MarketSnapshot{}, false
	}
	return *snap, true
}

// Fresh reports whether a snapshot exists and is younger than the staleness bound at now.
func (c *Cache) Fresh(now time.Time) bool {
	snap := c.current.Load()
	if snap == nil {
		return false
	}
	if c.staleAfter <= 0 {
		return true
	}
	return now.Sub(snap.Time) <= c.staleAfter
}

// Rejected counts ticks refused by Update.
func (c *Cache) Rejected() uint64 {
	return c.rejected.Load()
}
