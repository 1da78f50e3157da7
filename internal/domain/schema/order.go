// Package schema defines the domain types shared by the execution core.
package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Symbol names the traded instrument; fixed for the process lifetime.
type Symbol string

// ChannelID identifies a quoting channel.
type ChannelID string

// Side enumerates order directions.
type Side string

const (
	// SideBuy increases the net position.
	SideBuy Side = "BUY"
	// SideSell decreases the net position.
	SideSell Side = "SELL"
)

// ParseSide normalises user supplied side strings.
func ParseSide(value string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "BUY", "B", "BID", "LONG":
		return SideBuy, nil
	case "SELL", "S", "ASK", "SHORT":
		return SideSell, nil
	default:
		return "", fmt.Errorf("unknown side %q", value)
	}
}

// Sign returns +1 for buys and -1 for sells.
func (s Side) Sign() decimal.Decimal {
	if s == SideSell {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// Signed applies the side's sign to size.
func (s Side) Signed(size decimal.Decimal) decimal.Decimal {
	if s == SideSell {
		return size.Neg()
	}
	return size
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// OrderStatus enumerates order lifecycle states as seen by the core.
type OrderStatus string

const (
	OrderPending         OrderStatus = "PENDING"
	OrderOpen            OrderStatus = "OPEN"
	OrderPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderFilled          OrderStatus = "FILLED"
	OrderCancelled       OrderStatus = "CANCELLED"
	OrderRejected        OrderStatus = "REJECTED"
	// OrderUnknown marks an order whose command timed out; only a reconciliation query resolves it.
	OrderUnknown OrderStatus = "UNKNOWN"
)

// Terminal reports whether no further transitions are possible.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderFilled, OrderCancelled, OrderRejected:
		return true
	default:
		return false
	}
}

// Working reports whether the order may still rest on the venue.
func (s OrderStatus) Working() bool {
	switch s {
	case OrderPending, OrderOpen, OrderPartiallyFilled, OrderUnknown:
		return true
	default:
		return false
	}
}

// Order is the core's view of a single order.
type Order struct {
	ExchangeID string
	ClientID   string
	Channel    ChannelID
	Side       Side
	Price      decimal.Decimal
	Size       decimal.Decimal
	Filled     decimal.Decimal
	Status     OrderStatus
	Reason     string
	UpdatedAt  time.Time
}

// Remaining returns the unfilled size, never negative.
func (o Order) Remaining() decimal.Decimal {
	rem := o.Size.Sub(o.Filled)
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}

// Ref returns the best identifier available for logging.
func (o Order) Ref() string {
	if o.ExchangeID != "" {
		return o.ExchangeID
	}
	return o.ClientID
}

// Fill is a single execution reported by the venue.
type Fill struct {
	TradeID  string
	OrderID  string
	ClientID string
	Side     Side
	Price    decimal.Decimal
	Size     decimal.Decimal
	Time     time.Time
}

// PositionSnapshot summarises the net position.
type PositionSnapshot struct {
	NetSize       decimal.Decimal
	AvgEntryPrice decimal.Decimal
	RealizedPnL   decimal.Decimal
	// OpenedAt is when the net last left zero or changed sign; zero while flat.
	OpenedAt time.Time
	// AsOf is the venue time the snapshot was taken; zero when the venue does not say.
	AsOf time.Time
}

// Target is the quoting policy's desired order for one channel in the current cycle.
type Target struct {
	Channel ChannelID
	Price   decimal.Decimal
	Size    decimal.Decimal
}

// Active reports whether the target requests a resting order.
func (t Target) Active() bool {
	return t.Size.IsPositive() && t.Price.IsPositive()
}
