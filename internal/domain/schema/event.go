package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind classifies events delivered by exchange streams.
type EventKind uint8

const (
	EventUnknown EventKind = iota
	EventTick
	EventOrderUpdate
	EventFill
	EventDisconnect
	EventReconnect
)

func (k EventKind) String() string {
	switch k {
	case EventTick:
		return "tick"
	case EventOrderUpdate:
		return "order_update"
	case EventFill:
		return "fill"
	case EventDisconnect:
		return "disconnect"
	case EventReconnect:
		return "reconnect"
	default:
		return "unknown"
	}
}

// OrderUpdate is an acknowledgement or status change pushed by the venue.
// Filled is the cumulative filled size when the venue reports it.
type OrderUpdate struct {
	OrderID  string
	ClientID string
	Status   OrderStatus
	Filled   decimal.Decimal
	Reason   string
	Time     time.Time
}

// ExchangeEvent is the tagged union consumed by the event loop.
type ExchangeEvent struct {
	Kind   EventKind
	Tick   Tick
	Update OrderUpdate
	Fill   Fill
	Reason string
	Time   time.Time
}

// TickEvent wraps a market-data tick.
func TickEvent(t Tick) ExchangeEvent {
	return ExchangeEvent{Kind: EventTick, Tick: t, Time: t.Time}
}

// UpdateEvent wraps an order status update.
func UpdateEvent(u OrderUpdate) ExchangeEvent {
	return ExchangeEvent{Kind: EventOrderUpdate, Update: u, Time: u.Time}
}

// FillEvent wraps an execution.
func FillEvent(f Fill) ExchangeEvent {
	return ExchangeEvent{Kind: EventFill, Fill: f, Time: f.Time}
}

// DisconnectEvent signals that a stream lost its session.
func DisconnectEvent(reason string, at time.Time) ExchangeEvent {
	return ExchangeEvent{Kind: EventDisconnect, Reason: reason, Time: at}
}

// ReconnectEvent signals that a stream re-established its session.
func ReconnectEvent(at time.Time) ExchangeEvent {
	return ExchangeEvent{Kind: EventReconnect, Time: at}
}
