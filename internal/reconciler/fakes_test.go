package reconciler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/namn-grg/dual-channel-bot/internal/channel"
	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
	"github.com/namn-grg/dual-channel-bot/internal/exchange"
	"github.com/namn-grg/dual-channel-bot/internal/observability"
	"github.com/namn-grg/dual-channel-bot/internal/position"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeClient struct {
	mu       sync.Mutex
	places   []exchange.PlaceRequest
	cancels  []string
	queries  int
	place    func(ctx context.Context, req exchange.PlaceRequest) (string, error)
	cancel   func(ctx context.Context, id string) error
	open     []schema.Order
	position schema.PositionSnapshot
	queryErr error
}

func (f *fakeClient) PlaceOrder(ctx context.Context, req exchange.PlaceRequest) (string, error) {
	f.mu.Lock()
	f.places = append(f.places, req)
	fn := f.place
	n := len(f.places)
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return "x" + string(rune('0'+n)), nil
}

func (f *fakeClient) CancelOrder(ctx context.Context, id string) error {
	f.mu.Lock()
	f.cancels = append(f.cancels, id)
	fn := f.cancel
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, id)
	}
	return nil
}

func (f *fakeClient) OpenOrders(context.Context) ([]schema.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return append([]schema.Order(nil), f.open...), nil
}

func (f *fakeClient) Position(context.Context) (schema.PositionSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position, nil
}

func (f *fakeClient) placed() []exchange.PlaceRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]exchange.PlaceRequest(nil), f.places...)
}

func (f *fakeClient) cancelled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cancels...)
}

type fakeNotifier struct {
	results chan Result
	mu      sync.Mutex
	wakes   []time.Duration
}

func newNotifier() *fakeNotifier {
	return &fakeNotifier{results: make(chan Result, 16)}
}

func (n *fakeNotifier) Complete(res Result) { n.results <- res }

func (n *fakeNotifier) WakeAfter(d time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.wakes = append(n.wakes, d)
}

func (n *fakeNotifier) wakeCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.wakes)
}

type harness struct {
	t        *testing.T
	client   *fakeClient
	notifier *fakeNotifier
	tracker  *position.Tracker
	bid      *channel.Channel
	ask      *channel.Channel
	rec      *Reconciler
	logs     *observability.Recorder
	ids      int
}

var tol = channel.Tolerance{Price: dec("0.01"), Size: dec("0.5")}

func newHarness(t *testing.T, cfg Config, limits position.Limits) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		client:   &fakeClient{},
		notifier: newNotifier(),
		tracker:  position.NewTracker(limits),
		bid:      channel.New("bid", schema.SideBuy),
		ask:      channel.New("ask", schema.SideSell),
		logs:     observability.NewRecorder(),
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, Multiplier: 2}
	}
	rec, err := New(cfg, h.client, h.tracker, []*channel.Channel{h.bid, h.ask}, h.notifier,
		WithLogger(h.logs),
		WithClientIDs(func() string {
			h.ids++
			return "c" + string(rune('0'+h.ids))
		}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rec.Close(context.Background()) })
	h.rec = rec
	return h
}

// step dispatches what is dispatchable and applies the next result.
func (h *harness) step() Result {
	h.t.Helper()
	h.rec.Pump(time.Now())
	return h.next()
}

func (h *harness) next() Result {
	h.t.Helper()
	select {
	case res := <-h.notifier.results:
		h.rec.Complete(res, time.Now())
		return res
	case <-time.After(2 * time.Second):
		h.t.Fatalf("no command result")
		return Result{}
	}
}

func (h *harness) idle() {
	h.t.Helper()
	h.rec.Pump(time.Now())
	select {
	case res := <-h.notifier.results:
		h.t.Fatalf("unexpected command %s", res.Command.Kind)
	case <-time.After(30 * time.Millisecond):
	}
}

func (h *harness) start() {
	h.t.Helper()
	h.rec.RequestQuery("startup")
	res := h.step()
	require.Equal(h.t, KindQuery, res.Command.Kind)
	require.True(h.t, h.rec.Ready())
}

func (h *harness) evaluate(ch *channel.Channel, price, size string) {
	h.rec.Apply(ch.Evaluate(schema.Target{Price: dec(price), Size: dec(size)}, tol))
}
