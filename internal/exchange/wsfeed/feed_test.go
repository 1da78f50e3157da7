package wsfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
)

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

func (c *collector) events() []schema.ExchangeEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]schema.ExchangeEvent(nil), c.evs...)
}

func (c *collector) count(kind schema.EventKind) int {
	n := 0
	for _, ev := range c.events() {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// venue serves scripted sessions; each connection gets the next script.
type venue struct {
	sessions atomic.Int32
	scripts  [][]string
	received chan string
}

func (v *venue) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()
	n := int(v.sessions.Add(1)) - 1
	ctx := r.Context()

	if v.received != nil {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		select {
		case v.received <- string(data):
		default:
		}
	}
	if n >= len(v.scripts) {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}
	for _, msg := range v.scripts[n] {
		if err := conn.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
			return
		}
	}
	_ = conn.Close(websocket.StatusGoingAway, "maintenance")
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestFeedDecodesTicksAndReconnects(t *testing.T) {
	v := &venue{scripts: [][]string{
		{
			`{"result":null,"id":1}`,
			`{"s":"BTCUSDT","b":"50000","a":"50001"}`,
			`not json`,
			`{"s":"ETHUSDT","b":"99.9","B":"1","a":"100.1","A":"2","E":1700000000000}`,
		},
		{
			`{"stream":"ethusdt@bookTicker","data":{"s":"ETHUSDT","b":"100.0","a":"100.2","E":1700000001000}}`,
		},
	}, received: make(chan string, 4)}
	srv := httptest.NewServer(v)
	defer srv.Close()

	feed, err := New(Options{
		URL:            wsURL(srv),
		Symbol:         "ETH",
		VenueSymbol:    "ethusdt",
		Subscribe:      []string{"ethusdt@bookTicker"},
		InitialBackoff: 5 * time.Millisecond,
	})
	require.NoError(t, err)

	sink := &collector{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx, sink) }()

	require.Eventually(t, func() bool { return sink.count(schema.EventTick) == 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	msg := <-v.received
	require.Contains(t, msg, `"method":"SUBSCRIBE"`)
	require.Contains(t, msg, "ethusdt@bookTicker")

	var kinds []schema.EventKind
	var ticks []schema.Tick
	for _, ev := range sink.events() {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == schema.EventTick {
			ticks = append(ticks, ev.Tick)
		}
	}
	require.Equal(t, []schema.EventKind{schema.EventTick, schema.EventDisconnect, schema.EventReconnect, schema.EventTick}, kinds[:4])
	require.Equal(t, schema.Symbol("ETH"), ticks[0].Symbol)
	require.True(t, ticks[0].BestBid.Equal(decimal.RequireFromString("99.9")))
	require.True(t, ticks[0].BestAsk.Equal(decimal.RequireFromString("100.1")))
	require.Equal(t, time.UnixMilli(1700000000000), ticks[0].Time)
	require.True(t, ticks[1].BestAsk.Equal(decimal.RequireFromString("100.2")))
	require.GreaterOrEqual(t, feed.Sessions(), 2)
}

func TestFeedRetriesDial(t *testing.T) {
	var attempts atomic.Int32
	v := &venue{scripts: [][]string{{`{"s":"ETHUSDT","b":"1","a":"2"}`}}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		v.ServeHTTP(w, r)
	}))
	defer srv.Close()

	feed, err := New(Options{URL: wsURL(srv), Symbol: "ETH", InitialBackoff: time.Millisecond, MaxReconnectInterval: 5 * time.Millisecond})
	require.NoError(t, err)
	sink := &collector{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = feed.Run(ctx, sink) }()

	require.Eventually(t, func() bool { return sink.count(schema.EventTick) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.GreaterOrEqual(t, attempts.Load(), int32(3))
	// failed dials before the first session do not count as disconnects
	evs := sink.events()
	require.Equal(t, schema.EventTick, evs[0].Kind)
}

func TestNewRequiresURLAndSymbol(t *testing.T) {
	_, err := New(Options{Symbol: "ETH"})
	require.Error(t, err)
	_, err = New(Options{URL: "ws://localhost"})
	require.Error(t, err)
}

func TestDecode(t *testing.T) {
	feed, err := New(Options{URL: "ws://localhost", Symbol: "ETH", Clock: func() time.Time { return time.Unix(10, 0) }})
	require.NoError(t, err)

	tick, ok, err := feed.decode([]byte(`{"s":"X","b":"1.5","a":"1.6"}`))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, time.Unix(10, 0), tick.Time)

	_, ok, err = feed.decode([]byte(`{"id":7,"error":{"code":2,"msg":"invalid"}}`))
	require.NoError(t, err)
	require.False(t, ok)

	_, _, err = feed.decode([]byte(`{"s":"X","b":"abc","a":"1"}`))
	require.Error(t, err)

	_, ok, err = feed.decode([]byte(`{"e":"trade","p":"1"}`))
	require.NoError(t, err)
	require.False(t, ok)
}
