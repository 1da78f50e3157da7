// Package httpserver exposes a read-only HTTP view of the running bot.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	json "github.com/goccy/go-json"

	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
	"github.com/namn-grg/dual-channel-bot/internal/engine"
)

const (
	healthPath   = "/healthz"
	statusPath   = "/status"
	positionPath = "/position"

	statusTimeout = 2 * time.Second
)

// StatusSource reports channel state; *engine.Engine implements it.
type StatusSource interface {
	Status(ctx context.Context) ([]engine.ChannelStatus, error)
}

// PositionSource reports the tracked position; *position.Tracker implements it.
type PositionSource interface {
	Snapshot() schema.PositionSnapshot
	Fills() uint64
}

// Meta is echoed in every status response.
type Meta struct {
	Symbol  string `json:"symbol"`
	Network string `json:"network"`
	Policy  string `json:"policy"`
}

type handlerFunc func(http.ResponseWriter, *http.Request)

type httpServer struct {
	meta     Meta
	status   StatusSource
	position PositionSource
}

// NewHandler serves /healthz, /status and /position.
func NewHandler(meta Meta, status StatusSource, position PositionSource) http.Handler {
	s := &httpServer{meta: meta, status: status, position: position}
	mux := http.NewServeMux()
	mux.Handle(healthPath, methodHandlers(map[string]handlerFunc{
		http.MethodGet: s.health,
	}))
	mux.Handle(statusPath, methodHandlers(map[string]handlerFunc{
		http.MethodGet: s.getStatus,
	}))
	mux.Handle(positionPath, methodHandlers(map[string]handlerFunc{
		http.MethodGet: s.getPosition,
	}))
	return mux
}

// NewServer wraps the handler with the server timeouts the bot uses.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

func methodHandlers(handlers map[string]handlerFunc) http.Handler {
	allowed := make([]string, 0, len(handlers))
	for method := range handlers {
		allowed = append(allowed, method)
	}
	sort.Strings(allowed)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler(w, r)
			return
		}
		for _, method := range allowed {
			w.Header().Add("Allow", method)
		}
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

func (s *httpServer) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type orderPayload struct {
	ExchangeID string `json:"exchangeId,omitempty"`
	ClientID   string `json:"clientId"`
	Price      string `json:"price"`
	Size       string `json:"size"`
	Filled     string `json:"filled"`
	Status     string `json:"status"`
}

type channelPayload struct {
	ID     string        `json:"id"`
	Side   string        `json:"side"`
	State  string        `json:"state"`
	Reason string        `json:"reason,omitempty"`
	Order  *orderPayload `json:"order,omitempty"`
}

func (s *httpServer) getStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), statusTimeout)
	defer cancel()
	statuses, err := s.status.Status(ctx)
	if err != nil {
		code := http.StatusServiceUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			code = http.StatusGatewayTimeout
		}
		writeError(w, code, err.Error())
		return
	}
	channels := make([]channelPayload, 0, len(statuses))
	for _, st := range statuses {
		ch := channelPayload{
			ID:     string(st.ID),
			Side:   string(st.Side),
			State:  st.State.String(),
			Reason: st.Reason,
		}
		if st.Working {
			ch.Order = &orderPayload{
				ExchangeID: st.Order.ExchangeID,
				ClientID:   st.Order.ClientID,
				Price:      st.Order.Price.String(),
				Size:       st.Order.Size.String(),
				Filled:     st.Order.Filled.String(),
				Status:     string(st.Order.Status),
			}
		}
		channels = append(channels, ch)
	}
	writeJSON(w, http.StatusOK, map[string]any{"meta": s.meta, "channels": channels})
}

func (s *httpServer) getPosition(w http.ResponseWriter, _ *http.Request) {
	snap := s.position.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":        s.meta.Symbol,
		"netSize":       snap.NetSize.String(),
		"avgEntryPrice": snap.AvgEntryPrice.String(),
		"realizedPnl":   snap.RealizedPnL.String(),
		"fills":         s.position.Fills(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": "error", "error": message})
}
