package channel

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/namn-grg/dual-channel-bot/errs"
	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
)

const defaultLedgerSize = 256

// Tolerance bounds how far a live order may drift from the newest target before it is replaced.
// A zero field means any difference counts as drift.
type Tolerance struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

func exceeds(diff, tol decimal.Decimal) bool {
	if tol.IsPositive() {
		return diff.GreaterThanOrEqual(tol)
	}
	return diff.IsPositive()
}

// drifted compares target with the live order. Size is measured against what was
// requested minus what has filled, so a placement clamped by the exposure limit does
// not churn while a partial fill can be topped up.
func (t Tolerance) drifted(target, quoted schema.Target, order schema.Order) bool {
	if exceeds(target.Price.Sub(order.Price).Abs(), t.Price) {
		return true
	}
	want := quoted.Size.Sub(order.Filled)
	return exceeds(target.Size.Sub(want).Abs(), t.Size)
}

// Option customises a Channel.
type Option func(*Channel)

// WithLedgerSize bounds how many retired order ids are remembered.
func WithLedgerSize(n int) Option {
	return func(c *Channel) {
		if n > 0 {
			c.retired = newLedger(n)
		}
	}
}

// Channel is one quoting line. All methods must be called from the event loop.
type Channel struct {
	id      schema.ChannelID
	side    schema.Side
	state   State
	prior   State
	tol     Tolerance
	target  schema.Target
	wanted  bool
	quoted  schema.Target
	order   *schema.Order
	applied decimal.Decimal
	retired *ledger
	closing bool
	reason  string
}

// New constructs an idle channel quoting side.
func New(id schema.ChannelID, side schema.Side, opts ...Option) *Channel {
	c := &Channel{id: id, side: side, retired: newLedger(defaultLedgerSize)}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Channel) ID() schema.ChannelID { return c.id }
func (c *Channel) Side() schema.Side     { return c.side }
func (c *Channel) State() State          { return c.state }

// Reason returns the last rejection or skip reason.
func (c *Channel) Reason() string { return c.reason }

// Target returns the newest desired target, if the channel wants an order.
func (c *Channel) Target() (schema.Target, bool) {
	return c.target, c.wanted
}

// Working returns the channel's working order.
func (c *Channel) Working() (schema.Order, bool) {
	if c.order == nil {
		return schema.Order{}, false
	}
	return *c.order, true
}

// Drained reports whether the channel holds no order and has nothing unresolved.
func (c *Channel) Drained() bool {
	return c.order == nil && c.state != Unknown
}

// Owns reports whether the ids belong to the working order or a recently retired one.
func (c *Channel) Owns(exchangeID, clientID string) bool {
	if c.matches(exchangeID, clientID) {
		return true
	}
	_, ok := c.retired.lookup(exchangeID, clientID)
	return ok
}

func (c *Channel) matches(exchangeID, clientID string) bool {
	if c.order == nil {
		return false
	}
	if exchangeID != "" && c.order.ExchangeID == exchangeID {
		return true
	}
	return clientID != "" && c.order.ClientID == clientID
}

// Evaluate records the newest target and returns the action needed to converge on it.
// A target that is not Active pauses the channel.
func (c *Channel) Evaluate(target schema.Target, tol Tolerance) Action {
	c.tol = tol
	c.wanted = target.Active() && !c.closing
	if c.wanted {
		c.target = target
		c.target.Channel = c.id
	}
	switch c.state {
	case Idle:
		if c.wanted {
			c.state = Desired
			return Action{Kind: ActionPlace, Channel: c.id}
		}
	case Desired:
		if !c.wanted {
			c.state = Idle
		}
	case Live:
		return c.settle()
	case Replacing:
		if !c.wanted {
			c.state = Cancelling
		}
	case Cancelling:
		if c.wanted {
			c.state = Replacing
		}
	}
	return Action{}
}

// settle decides what a confirmed working order needs given the newest target.
func (c *Channel) settle() Action {
	c.state = Live
	if !c.wanted {
		c.state = Cancelling
		return c.cancel()
	}
	if c.tol.drifted(c.target, c.quoted, *c.order) {
		c.state = Replacing
		return c.cancel()
	}
	return Action{}
}

func (c *Channel) cancel() Action {
	return Action{Kind: ActionCancel, Channel: c.id, Order: *c.order}
}

// BeginPlace moves Desired to Placing with the order about to be sent.
func (c *Channel) BeginPlace(order schema.Order) error {
	if c.state != Desired || c.order != nil {
		return errs.New("channel", errs.CodeInvalid,
			errs.WithChannel(string(c.id)),
			errs.WithOrder(order.ClientID),
			errs.WithMessage(fmt.Sprintf("cannot place while %s", c.state)))
	}
	order.Channel = c.id
	order.Side = c.side
	order.Filled = decimal.Zero
	order.Status = schema.OrderPending
	c.order = &order
	c.applied = decimal.Zero
	c.quoted = c.target
	c.state = Placing
	c.reason = ""
	return nil
}

// SkipPlace abandons a desired placement, typically because the clamped size is zero.
func (c *Channel) SkipPlace(reason string) {
	if c.state != Desired {
		return
	}
	c.state = Idle
	c.reason = reason
}

// OnPlaced applies a successful place response.
func (c *Channel) OnPlaced(clientID, exchangeID string) Action {
	if c.order == nil || c.order.ClientID != clientID {
		return c.stray(exchangeID, clientID)
	}
	if exchangeID != "" {
		c.order.ExchangeID = exchangeID
	}
	if c.state != Placing {
		return Action{}
	}
	if c.order.Status == schema.OrderPending {
		c.order.Status = schema.OrderOpen
	}
	return c.settle()
}

// stray handles evidence of a working order the channel does not hold. Orders the
// channel declared absent during reconciliation are cancelled; confirmed terminal ones are ignored.
func (c *Channel) stray(exchangeID, clientID string) Action {
	status, ok := c.retired.lookup(exchangeID, clientID)
	if ok && status != schema.OrderUnknown {
		return Action{}
	}
	if exchangeID == "" {
		return Action{}
	}
	orphan := schema.Order{ExchangeID: exchangeID, ClientID: clientID, Channel: c.id, Side: c.side, Status: schema.OrderOpen}
	c.retired.retire(orphan, schema.OrderCancelled, decimal.Zero)
	return Action{Kind: ActionOrphan, Channel: c.id, Order: orphan}
}

// OnRejected applies a rejected placement. The channel goes Idle and retries on a later cycle.
func (c *Channel) OnRejected(clientID, reason string) Action {
	if c.order == nil || c.order.ClientID != clientID {
		return Action{}
	}
	c.reason = reason
	c.order.Reason = reason
	return c.retire(schema.OrderRejected)
}

// OnCancelled applies a confirmed cancel of the working order.
func (c *Channel) OnCancelled(exchangeID, clientID string) Action {
	if !c.matches(exchangeID, clientID) {
		return Action{}
	}
	return c.retire(schema.OrderCancelled)
}

// Duplicate reports whether fill would take the fills seen for its order past the
// order's size. Such a fill is a redelivery of one already applied.
func (c *Channel) Duplicate(fill schema.Fill) bool {
	if c.matches(fill.OrderID, fill.ClientID) {
		return overfills(c.applied, fill.Size, c.order.Size)
	}
	if r, ok := c.retired.entry(fill.OrderID, fill.ClientID); ok {
		return overfills(r.applied, fill.Size, r.size)
	}
	return false
}

func overfills(applied, size, total decimal.Decimal) bool {
	return total.IsPositive() && applied.Add(size).GreaterThan(total)
}

// OnFill reduces the working order's remaining size. A full fill retires the order.
// Fills for a retired order are only counted.
func (c *Channel) OnFill(fill schema.Fill) Action {
	if !c.matches(fill.OrderID, fill.ClientID) {
		if r, ok := c.retired.entry(fill.OrderID, fill.ClientID); ok {
			r.applied = r.applied.Add(fill.Size)
		}
		return Action{}
	}
	c.applied = c.applied.Add(fill.Size)
	c.order.Filled = decimal.Max(c.order.Filled, c.applied)
	if c.order.Filled.GreaterThanOrEqual(c.order.Size) {
		c.order.Filled = c.order.Size
		return c.retire(schema.OrderFilled)
	}
	if c.order.Status != schema.OrderUnknown {
		c.order.Status = schema.OrderPartiallyFilled
	}
	return Action{}
}

// OnStatus applies an order update pushed by the exchange. Updates for retired
// orders are no-ops, so duplicated acknowledgements leave state unchanged.
func (c *Channel) OnStatus(u schema.OrderUpdate) Action {
	if !c.matches(u.OrderID, u.ClientID) {
		if u.Status.Working() {
			return c.stray(u.OrderID, u.ClientID)
		}
		return Action{}
	}
	switch u.Status {
	case schema.OrderOpen, schema.OrderPartiallyFilled:
		if u.OrderID != "" {
			c.order.ExchangeID = u.OrderID
		}
		if u.Filled.GreaterThan(c.order.Filled) {
			c.order.Filled = decimal.Min(u.Filled, c.order.Size)
		}
		if c.order.Status != schema.OrderUnknown {
			if u.Status == schema.OrderPartiallyFilled || c.order.Status == schema.OrderPending {
				c.order.Status = u.Status
			}
		}
		if c.state == Placing {
			return c.settle()
		}
	case schema.OrderFilled:
		c.order.Filled = c.order.Size
		return c.retire(schema.OrderFilled)
	case schema.OrderCancelled:
		return c.retire(schema.OrderCancelled)
	case schema.OrderRejected:
		c.reason = u.Reason
		c.order.Reason = u.Reason
		return c.retire(schema.OrderRejected)
	}
	return Action{}
}

// retire drops the working order after a terminal confirmation.
func (c *Channel) retire(status schema.OrderStatus) Action {
	c.retired.retire(*c.order, status, c.applied)
	c.order = nil
	switch c.state {
	case Unknown:
		return Action{}
	case Replacing:
		if c.wanted {
			c.state = Desired
			return Action{Kind: ActionPlace, Channel: c.id}
		}
	}
	c.state = Idle
	return Action{}
}

// MarkUnknown records that a command's outcome is unknown. The channel takes no
// further action until Resolve.
func (c *Channel) MarkUnknown() {
	if c.state == Unknown {
		return
	}
	c.prior = c.state
	c.state = Unknown
	if c.order != nil {
		c.order.Status = schema.OrderUnknown
	}
}

// Resolve reconciles the channel against the exchange's open orders. It returns the
// exchange id of the open order the channel kept, if any.
func (c *Channel) Resolve(open []schema.Order) (string, Action) {
	wasUnknown := c.state == Unknown
	prior := c.state
	if wasUnknown {
		prior = c.prior
	}
	if c.order == nil {
		if wasUnknown {
			c.state = Idle
		}
		return "", Action{}
	}
	for _, o := range open {
		if !c.matches(o.ExchangeID, o.ClientID) {
			continue
		}
		c.adopt(o)
		switch prior {
		case Cancelling, Replacing:
			c.state = Cancelling
			if c.wanted {
				c.state = Replacing
			}
			if wasUnknown {
				return c.order.ExchangeID, c.cancel()
			}
			return c.order.ExchangeID, Action{}
		default:
			return c.order.ExchangeID, c.settle()
		}
	}
	c.retired.retire(*c.order, schema.OrderUnknown, c.applied)
	c.order = nil
	if prior == Replacing && c.wanted {
		c.state = Desired
		return "", Action{Kind: ActionPlace, Channel: c.id}
	}
	c.state = Idle
	return "", Action{}
}

func (c *Channel) adopt(o schema.Order) {
	if o.ExchangeID != "" {
		c.order.ExchangeID = o.ExchangeID
	}
	if o.Price.IsPositive() {
		c.order.Price = o.Price
	}
	if o.Size.IsPositive() {
		c.order.Size = o.Size
	}
	c.order.Filled = o.Filled
	c.order.Status = schema.OrderOpen
	if o.Filled.IsPositive() {
		c.order.Status = schema.OrderPartiallyFilled
	}
}

// Adopt takes ownership of an exchange order found at startup. Only an idle channel
// on the same side accepts it.
func (c *Channel) Adopt(o schema.Order) bool {
	if c.state != Idle || c.order != nil || c.closing || o.Side != c.side || o.ExchangeID == "" {
		return false
	}
	o.Channel = c.id
	c.order = &o
	c.applied = o.Filled
	c.adopt(o)
	c.quoted = schema.Target{Channel: c.id, Price: o.Price, Size: o.Size}
	c.state = Live
	return true
}

// Shutdown stops all future placements and cancels the working order if one is live.
func (c *Channel) Shutdown() Action {
	c.closing = true
	c.wanted = false
	switch c.state {
	case Desired:
		c.state = Idle
	case Live:
		c.state = Cancelling
		return c.cancel()
	case Replacing:
		c.state = Cancelling
	}
	return Action{}
}
