package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/namn-grg/dual-channel-bot/internal/channel"
	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
	"github.com/namn-grg/dual-channel-bot/internal/engine"
	"github.com/namn-grg/dual-channel-bot/internal/position"
)

type statusStub struct {
	statuses []engine.ChannelStatus
	err      error
}

func (s statusStub) Status(context.Context) ([]engine.ChannelStatus, error) {
	return s.statuses, s.err
}

func get(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestStatusReportsChannels(t *testing.T) {
	src := statusStub{statuses: []engine.ChannelStatus{
		{ID: "long", Side: schema.SideBuy, State: channel.Live, Working: true, Order: schema.Order{
			ExchangeID: "x-1", ClientID: "c-1", Price: decimal.RequireFromString("24.875"),
			Size: decimal.NewFromInt(15), Filled: decimal.Zero, Status: schema.OrderStatus("OPEN"),
		}},
		{ID: "short", Side: schema.SideSell, State: channel.Idle, Reason: "exposure limit"},
	}}
	h := NewHandler(Meta{Symbol: "HYPE", Network: "testnet", Policy: "dual_channel"}, src, position.NewTracker(position.Limits{}))

	rec, body := get(t, h, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "HYPE", body["meta"].(map[string]any)["symbol"])

	channels := body["channels"].([]any)
	require.Len(t, channels, 2)
	long := channels[0].(map[string]any)
	require.Equal(t, "live", long["state"])
	require.Equal(t, "24.875", long["order"].(map[string]any)["price"])
	short := channels[1].(map[string]any)
	require.Equal(t, "idle", short["state"])
	require.Equal(t, "exposure limit", short["reason"])
	require.NotContains(t, short, "order")
}

func TestStatusUnavailableAfterStop(t *testing.T) {
	h := NewHandler(Meta{}, statusStub{err: engine.ErrStopped}, position.NewTracker(position.Limits{}))
	rec, body := get(t, h, http.MethodGet, "/status")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "error", body["status"])
}

func TestPositionAndHealth(t *testing.T) {
	tracker := position.NewTracker(position.Limits{})
	tracker.ApplyFill("long", schema.Fill{TradeID: "t", Side: schema.SideBuy, Price: decimal.NewFromInt(25), Size: decimal.NewFromInt(3)})
	h := NewHandler(Meta{Symbol: "HYPE"}, statusStub{}, tracker)

	rec, body := get(t, h, http.MethodGet, "/position")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "3", body["netSize"])
	require.Equal(t, float64(1), body["fills"])

	rec, body = get(t, h, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", body["status"])

	rec, _ = get(t, h, http.MethodPost, "/status")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Equal(t, http.MethodGet, rec.Header().Get("Allow"))
}
