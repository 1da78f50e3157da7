package channel

import (
	"github.com/shopspring/decimal"

	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
)

// retiredOrder is what the channel still knows about an order it no longer holds.
type retiredOrder struct {
	status  schema.OrderStatus
	size    decimal.Decimal
	applied decimal.Decimal
}

// ledger remembers recently retired order ids so late or duplicated
// acknowledgements and fills can be recognised.
type ledger struct {
	orders map[string]*retiredOrder
	ring   []string
	next   int
	limit  int
}

func newLedger(limit int) *ledger {
	return &ledger{orders: make(map[string]*retiredOrder, limit), limit: limit}
}

// retire records o under both of its ids. applied is the size of fills already seen.
func (l *ledger) retire(o schema.Order, status schema.OrderStatus, applied decimal.Decimal) {
	entry := &retiredOrder{status: status, size: o.Size, applied: applied}
	for _, id := range []string{o.ExchangeID, o.ClientID} {
		if id == "" {
			continue
		}
		if _, ok := l.orders[id]; !ok {
			l.push(id)
		}
		l.orders[id] = entry
	}
}

func (l *ledger) push(id string) {
	if len(l.ring) < l.limit {
		l.ring = append(l.ring, id)
		return
	}
	delete(l.orders, l.ring[l.next])
	l.ring[l.next] = id
	l.next = (l.next + 1) % l.limit
}

func (l *ledger) entry(exchangeID, clientID string) (*retiredOrder, bool) {
	if exchangeID != "" {
		if r, ok := l.orders[exchangeID]; ok {
			return r, true
		}
	}
	if clientID != "" {
		if r, ok := l.orders[clientID]; ok {
			return r, true
		}
	}
	return nil, false
}

// lookup returns the retired status of either id.
func (l *ledger) lookup(exchangeID, clientID string) (schema.OrderStatus, bool) {
	r, ok := l.entry(exchangeID, clientID)
	if !ok {
		return "", false
	}
	return r.status, true
}
