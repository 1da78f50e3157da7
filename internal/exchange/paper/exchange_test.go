package paper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/namn-grg/dual-channel-bot/errs"
	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
	"github.com/namn-grg/dual-channel-bot/internal/exchange"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func drain(e *Exchange) []schema.ExchangeEvent {
	var out []schema.ExchangeEvent
	for {
		select {
		case ev := <-e.outbox:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func kinds(evs []schema.ExchangeEvent) []schema.EventKind {
	out := make([]schema.EventKind, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Kind)
	}
	return out
}

func buy(client, price, size string) exchange.PlaceRequest {
	return exchange.PlaceRequest{ClientID: client, Symbol: "ETH", Side: schema.SideBuy, Price: dec(price), Size: dec(size)}
}

func TestPlaceIsIdempotentPerClientID(t *testing.T) {
	ex := New(Options{Symbol: "ETH"})
	ctx := context.Background()

	id, err := ex.PlaceOrder(ctx, buy("c1", "99", "1"))
	require.NoError(t, err)
	again, err := ex.PlaceOrder(ctx, buy("c1", "99", "1"))
	require.NoError(t, err)
	require.Equal(t, id, again)

	open, err := ex.OpenOrders(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, "c1", open[0].ClientID)
	require.Equal(t, []schema.EventKind{schema.EventOrderUpdate}, kinds(drain(ex)))
}

func TestTickFillsCrossedOrders(t *testing.T) {
	ex := New(Options{Symbol: "ETH"})
	ctx := context.Background()
	id, err := ex.PlaceOrder(ctx, buy("c1", "99.5", "10"))
	require.NoError(t, err)
	drain(ex)

	ex.Tick(schema.Tick{BestBid: dec("99.9"), BestAsk: dec("100.1")})
	require.Equal(t, []schema.EventKind{schema.EventTick}, kinds(drain(ex)))

	ex.Tick(schema.Tick{BestBid: dec("99.3"), BestAsk: dec("99.5")})
	evs := drain(ex)
	require.Equal(t, []schema.EventKind{schema.EventTick, schema.EventFill, schema.EventOrderUpdate}, kinds(evs))
	require.Equal(t, id, evs[1].Fill.OrderID)
	require.True(t, evs[1].Fill.Price.Equal(dec("99.5")))
	require.Equal(t, schema.OrderFilled, evs[2].Update.Status)

	pos, err := ex.Position(ctx)
	require.NoError(t, err)
	require.True(t, pos.NetSize.Equal(dec("10")))
	require.True(t, pos.AvgEntryPrice.Equal(dec("99.5")))

	open, err := ex.OpenOrders(ctx)
	require.NoError(t, err)
	require.Empty(t, open)
}

func TestPartialFill(t *testing.T) {
	ex := New(Options{})
	id, err := ex.PlaceOrder(context.Background(), buy("c1", "99", "4"))
	require.NoError(t, err)
	drain(ex)

	require.NoError(t, ex.Fill(id, dec("1")))
	evs := drain(ex)
	require.Equal(t, schema.OrderPartiallyFilled, evs[1].Update.Status)
	require.True(t, evs[1].Update.Filled.Equal(dec("1")))
	require.Error(t, ex.Fill(id, dec("5")))
	require.True(t, errs.IsNotFound(ex.Fill("missing", dec("1"))))
}

func TestPostOnlyRejectsCrossingOrders(t *testing.T) {
	ex := New(Options{Symbol: "ETH"})
	ex.Tick(schema.Tick{BestBid: dec("99"), BestAsk: dec("100")})
	req := buy("c1", "100", "1")
	req.PostOnly = true
	_, err := ex.PlaceOrder(context.Background(), req)
	require.True(t, errs.IsRejected(err))

	// without post-only the order executes immediately
	req.PostOnly = false
	_, err = ex.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	pos, _ := ex.Position(context.Background())
	require.True(t, pos.NetSize.Equal(dec("1")))
}

func TestPlaceValidation(t *testing.T) {
	ex := New(Options{Symbol: "ETH"})
	_, err := ex.PlaceOrder(context.Background(), buy("c1", "0", "1"))
	require.True(t, errs.IsRejected(err))
	req := buy("c2", "1", "1")
	req.Symbol = "BTC"
	_, err = ex.PlaceOrder(context.Background(), req)
	require.True(t, errs.IsRejected(err))
}

func TestCancel(t *testing.T) {
	ex := New(Options{})
	ctx := context.Background()
	id, err := ex.PlaceOrder(ctx, buy("c1", "99", "1"))
	require.NoError(t, err)
	require.NoError(t, ex.CancelOrder(ctx, id))
	require.True(t, errs.IsNotFound(ex.CancelOrder(ctx, id)))
	evs := drain(ex)
	require.Equal(t, schema.OrderCancelled, evs[len(evs)-1].Update.Status)
}

func TestFaultInjection(t *testing.T) {
	ex := New(Options{})
	ctx := context.Background()

	ex.FailNext(OpPlace, errs.New("test", errs.CodeNetwork))
	_, err := ex.PlaceOrder(ctx, buy("c1", "99", "1"))
	require.True(t, errs.IsTransient(err))
	open, _ := ex.OpenOrders(ctx)
	require.Empty(t, open)

	ex.LoseNextResponse(OpPlace)
	_, err = ex.PlaceOrder(ctx, buy("c1", "99", "1"))
	require.True(t, errs.IsTimeout(err))
	open, _ = ex.OpenOrders(ctx)
	require.Len(t, open, 1)
	require.Equal(t, 2, ex.Calls(OpPlace))

	ex.Disconnect("maintenance")
	_, err = ex.OpenOrders(ctx)
	require.True(t, errs.IsTransient(err))
	ex.Reconnect()
	_, err = ex.OpenOrders(ctx)
	require.NoError(t, err)
}

func TestLatencyHonoursContext(t *testing.T) {
	ex := New(Options{Latency: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := ex.PlaceOrder(ctx, buy("c1", "99", "1"))
	require.True(t, errs.IsTimeout(err))
}

type collector struct {
	mu  sync.Mutex
	evs []schema.ExchangeEvent
}

func (c *collector) Publish(_ context.Context, ev schema.ExchangeEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evs = append(c.evs, ev)
	return nil
}

func (c *collector) ticks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ev := range c.evs {
		if ev.Kind == schema.EventTick {
			n++
		}
	}
	return n
}

func TestRunDeliversSyntheticTicks(t *testing.T) {
	ex := New(Options{Symbol: "ETH", TickInterval: time.Millisecond, TickSize: dec("0.01"), Seed: 7})
	sink := &collector{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ex.Run(ctx, sink) }()

	require.Eventually(t, func() bool { return sink.ticks() >= 5 }, time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	for _, ev := range sink.evs {
		_, err := ev.Tick.Snapshot()
		require.NoError(t, err)
		require.Equal(t, schema.Symbol("ETH"), ev.Tick.Symbol)
	}
}
