// Package paper provides an in-memory venue for paper trading and tests.
package paper

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/namn-grg/dual-channel-bot/errs"
	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
	"github.com/namn-grg/dual-channel-bot/internal/exchange"
	"github.com/namn-grg/dual-channel-bot/internal/position"
)

const component = "paper"

// Op names a client call for fault injection.
type Op string

const (
	OpPlace  Op = "place"
	OpCancel Op = "cancel"
	OpQuery  Op = "query"
)

type restingOrder struct {
	order schema.Order
	seq   uint64
}

// Exchange is a single-symbol simulated venue. Resting orders fill in full when a
// tick trades through their price.
type Exchange struct {
	opts Options

	mu       sync.Mutex
	orders   map[string]*restingOrder
	byClient map[string]string
	seq      uint64
	last     schema.Tick
	account  *position.Tracker
	faults   map[Op][]error
	lost     map[Op]int
	dropAcks bool
	down     bool

	outbox chan schema.ExchangeEvent
	calls  map[Op]int
}

var (
	_ exchange.Client = (*Exchange)(nil)
	_ exchange.Stream = (*Exchange)(nil)
)

// New constructs a paper venue.
func New(opts Options) *Exchange {
	opts = withDefaults(opts)
	return &Exchange{
		opts:     opts,
		orders:   make(map[string]*restingOrder),
		byClient: make(map[string]string),
		account:  position.NewTracker(position.Limits{}, position.WithClock(opts.Clock)),
		faults:   make(map[Op][]error),
		lost:     make(map[Op]int),
		outbox:   make(chan schema.ExchangeEvent, opts.Outbox),
		calls:    make(map[Op]int),
	}
}

// FailNext makes the next call of op return err without touching venue state.
func (e *Exchange) FailNext(op Op, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.faults[op] = append(e.faults[op], err)
}

// LoseNextResponse applies the next call of op but reports a timeout to the caller.
func (e *Exchange) LoseNextResponse(op Op) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lost[op]++
}

// DropAcks suppresses order status events; only call results confirm orders.
func (e *Exchange) DropAcks(drop bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dropAcks = drop
}

// Calls reports how many times op reached the venue.
func (e *Exchange) Calls(op Op) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[op]
}

// Disconnect emits a disconnect event; client calls fail until Reconnect.
func (e *Exchange) Disconnect(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.down = true
	e.emit(schema.DisconnectEvent(reason, e.opts.Clock()))
}

// Reconnect restores the session and emits a reconnect event.
func (e *Exchange) Reconnect() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.down = false
	e.emit(schema.ReconnectEvent(e.opts.Clock()))
}

// Seed places an order directly on the venue, as if left over from an earlier session.
func (e *Exchange) Seed(side schema.Side, price, size decimal.Decimal) schema.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rest(uuid.NewString(), side, price, size).order
}

// Carry sets the account position as if held over from an earlier session.
func (e *Exchange) Carry(pos schema.PositionSnapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.account.Overwrite(pos)
}

// PlaceOrder implements exchange.Client. Resubmitting a client id returns the original order id.
func (e *Exchange) PlaceOrder(ctx context.Context, req exchange.PlaceRequest) (string, error) {
	if err := e.wait(ctx); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(OpPlace); err != nil {
		return "", err
	}
	if id, ok := e.byClient[req.ClientID]; ok && req.ClientID != "" {
		return id, e.respond(OpPlace)
	}
	if req.Symbol != "" && e.opts.Symbol != "" && req.Symbol != e.opts.Symbol {
		return "", errs.New(component, errs.CodeRejected, errs.WithOrder(req.ClientID), errs.WithMessage("unknown symbol "+string(req.Symbol)))
	}
	if !req.Price.IsPositive() || !req.Size.IsPositive() {
		return "", errs.New(component, errs.CodeRejected, errs.WithOrder(req.ClientID), errs.WithMessage("price and size must be positive"))
	}
	crosses := e.crosses(req.Side, req.Price)
	if crosses && (req.PostOnly || e.opts.PostOnly) {
		return "", errs.New(component, errs.CodeRejected, errs.WithOrder(req.ClientID), errs.WithMessage("post-only order would cross"))
	}
	r := e.rest(req.ClientID, req.Side, req.Price, req.Size)
	if crosses {
		e.fill(r, r.order.Remaining(), req.Price)
	}
	return r.order.ExchangeID, e.respond(OpPlace)
}

// CancelOrder implements exchange.Client.
func (e *Exchange) CancelOrder(ctx context.Context, id string) error {
	if err := e.wait(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(OpCancel); err != nil {
		return err
	}
	r, ok := e.orders[id]
	if !ok {
		return errs.New(component, errs.CodeNotFound, errs.WithOrder(id), errs.WithMessage("order not open"))
	}
	delete(e.orders, id)
	r.order.Status = schema.OrderCancelled
	e.ack(r.order)
	return e.respond(OpCancel)
}

// OpenOrders implements exchange.Client.
func (e *Exchange) OpenOrders(ctx context.Context) ([]schema.Order, error) {
	if err := e.wait(ctx); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(OpQuery); err != nil {
		return nil, err
	}
	resting := make([]*restingOrder, 0, len(e.orders))
	for _, r := range e.orders {
		resting = append(resting, r)
	}
	sort.Slice(resting, func(i, j int) bool { return resting[i].seq < resting[j].seq })
	out := make([]schema.Order, 0, len(resting))
	for _, r := range resting {
		out = append(out, r.order)
	}
	return out, nil
}

// Position implements exchange.Client.
func (e *Exchange) Position(ctx context.Context) (schema.PositionSnapshot, error) {
	if err := e.wait(ctx); err != nil {
		return schema.PositionSnapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.down {
		return schema.PositionSnapshot{}, errs.New(component, errs.CodeNetwork, errs.WithMessage("disconnected"))
	}
	snap := e.account.Snapshot()
	snap.AsOf = e.opts.Clock()
	return snap, nil
}

// Tick publishes a market update and fills every resting order it trades through.
func (e *Exchange) Tick(tick schema.Tick) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if tick.Symbol == "" {
		tick.Symbol = e.opts.Symbol
	}
	if tick.Time.IsZero() {
		tick.Time = e.opts.Clock()
	}
	e.last = tick
	e.emit(schema.TickEvent(tick))

	resting := make([]*restingOrder, 0, len(e.orders))
	for _, r := range e.orders {
		if e.crosses(r.order.Side, r.order.Price) {
			resting = append(resting, r)
		}
	}
	sort.Slice(resting, func(i, j int) bool { return resting[i].seq < resting[j].seq })
	for _, r := range resting {
		e.fill(r, r.order.Remaining(), r.order.Price)
	}
}

// Fill executes size of a resting order at its limit price.
func (e *Exchange) Fill(exchangeID string, size decimal.Decimal) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.orders[exchangeID]
	if !ok {
		return errs.New(component, errs.CodeNotFound, errs.WithOrder(exchangeID))
	}
	if size.GreaterThan(r.order.Remaining()) {
		return errs.New(component, errs.CodeInvalid, errs.WithOrder(exchangeID), errs.WithMessage(fmt.Sprintf("fill %s exceeds remaining %s", size, r.order.Remaining())))
	}
	e.fill(r, size, r.order.Price)
	return nil
}

func (e *Exchange) wait(ctx context.Context) error {
	if e.opts.Latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(e.opts.Latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return errs.New(component, errs.CodeTimeout, errs.WithCause(ctx.Err()))
	case <-timer.C:
		return nil
	}
}

// enter counts the call and applies connection state and injected faults.
func (e *Exchange) enter(op Op) error {
	e.calls[op]++
	if e.down {
		return errs.New(component, errs.CodeNetwork, errs.WithMessage("disconnected"))
	}
	if queued := e.faults[op]; len(queued) > 0 {
		e.faults[op] = queued[1:]
		return queued[0]
	}
	return nil
}

func (e *Exchange) respond(op Op) error {
	if e.lost[op] > 0 {
		e.lost[op]--
		return errs.New(component, errs.CodeTimeout, errs.WithMessage("response lost"))
	}
	return nil
}

func (e *Exchange) rest(clientID string, side schema.Side, price, size decimal.Decimal) *restingOrder {
	e.seq++
	r := &restingOrder{
		seq: e.seq,
		order: schema.Order{
			ExchangeID: uuid.NewString(),
			ClientID:   clientID,
			Side:       side,
			Price:      price,
			Size:       size,
			Filled:     decimal.Zero,
			Status:     schema.OrderOpen,
			UpdatedAt:  e.opts.Clock(),
		},
	}
	e.orders[r.order.ExchangeID] = r
	if clientID != "" {
		e.byClient[clientID] = r.order.ExchangeID
	}
	e.ack(r.order)
	return r
}

func (e *Exchange) crosses(side schema.Side, price decimal.Decimal) bool {
	switch side {
	case schema.SideBuy:
		ask := e.last.BestAsk
		if !ask.IsPositive() {
			ask = e.last.Mid
		}
		return ask.IsPositive() && price.GreaterThanOrEqual(ask)
	case schema.SideSell:
		bid := e.last.BestBid
		if !bid.IsPositive() {
			bid = e.last.Mid
		}
		return bid.IsPositive() && price.LessThanOrEqual(bid)
	}
	return false
}

func (e *Exchange) fill(r *restingOrder, size, price decimal.Decimal) {
	now := e.opts.Clock()
	f := schema.Fill{
		TradeID:  uuid.NewString(),
		OrderID:  r.order.ExchangeID,
		ClientID: r.order.ClientID,
		Side:     r.order.Side,
		Price:    price,
		Size:     size,
		Time:     now,
	}
	e.account.ApplyFill("", f)
	r.order.Filled = r.order.Filled.Add(size)
	r.order.UpdatedAt = now
	r.order.Status = schema.OrderPartiallyFilled
	if !r.order.Remaining().IsPositive() {
		r.order.Status = schema.OrderFilled
		delete(e.orders, r.order.ExchangeID)
	}
	e.emit(schema.FillEvent(f))
	e.ack(r.order)
}

func (e *Exchange) ack(o schema.Order) {
	if e.dropAcks {
		return
	}
	e.emit(schema.UpdateEvent(schema.OrderUpdate{
		OrderID:  o.ExchangeID,
		ClientID: o.ClientID,
		Status:   o.Status,
		Filled:   o.Filled,
		Reason:   o.Reason,
		Time:     o.UpdatedAt,
	}))
}

// emit queues an event for the stream. Events beyond the outbox bound are dropped,
// which the bot recovers from through reconciliation.
func (e *Exchange) emit(ev schema.ExchangeEvent) {
	select {
	case e.outbox <- ev:
	default:
	}
}
