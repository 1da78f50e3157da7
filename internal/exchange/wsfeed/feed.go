// Package wsfeed streams top-of-book quotes from a websocket market-data endpoint.
//
// Messages follow the bookTicker layout used by most spot and perpetual venues:
//
//	{"s":"ETHUSDT","b":"2999.5","B":"1.2","a":"3000.5","A":"0.8","E":1700000000000}
//
// optionally wrapped in a combined-stream envelope {"stream":"...","data":{...}}.
// Every dropped session emits a Disconnect event and every re-established session
// a Reconnect event, so consumers can pause and reconcile.
package wsfeed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"

	"github.com/namn-grg/dual-channel-bot/errs"
	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
	"github.com/namn-grg/dual-channel-bot/internal/exchange"
	"github.com/namn-grg/dual-channel-bot/internal/observability"
)

const (
	component = "wsfeed"

	defaultPingInterval   = 30 * time.Second
	defaultPingTimeout    = 5 * time.Second
	defaultWriteTimeout   = 5 * time.Second
	defaultMaxReconnect   = 30 * time.Second
	defaultInitialBackoff = 500 * time.Millisecond
	defaultReadLimit      = 1 << 20
)

// Options configure a Feed.
type Options struct {
	URL string
	// Symbol is the local symbol stamped on every tick.
	Symbol schema.Symbol
	// VenueSymbol filters messages by their "s" field, case-insensitively. Empty accepts all.
	VenueSymbol string
	// Subscribe lists streams requested with a SUBSCRIBE frame after each connect.
	Subscribe []string

	PingInterval         time.Duration
	InitialBackoff       time.Duration
	MaxReconnectInterval time.Duration
	ReadLimit            int64
	Logger               observability.Logger
	Clock                func() time.Time
}

func (o Options) withDefaults() Options {
	if o.PingInterval <= 0 {
		o.PingInterval = defaultPingInterval
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = defaultInitialBackoff
	}
	if o.MaxReconnectInterval <= 0 {
		o.MaxReconnectInterval = defaultMaxReconnect
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = defaultReadLimit
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	o.Logger = observability.Or(o.Logger)
	return o
}

// Feed implements exchange.Stream over a websocket connection.
type Feed struct {
	opts    Options
	metrics *feedMetrics
	msgID   atomic.Uint64

	mu       sync.Mutex
	sessions int
}

// New validates opts and returns a Feed.
func New(opts Options) (*Feed, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, errs.New(component, errs.CodeConfig, errs.WithMessage("feed url required"))
	}
	if opts.Symbol == "" {
		return nil, errs.New(component, errs.CodeConfig, errs.WithMessage("feed symbol required"))
	}
	opts = opts.withDefaults()
	return &Feed{opts: opts, metrics: newFeedMetrics(string(opts.Symbol))}, nil
}

// Sessions reports how many connections have been established.
func (f *Feed) Sessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     uint64   `json:"id"`
}

type envelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *wsError        `json:"error,omitempty"`
}

type wsError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type bookTicker struct {
	Symbol    string `json:"s"`
	Bid       string `json:"b"`
	Ask       string `json:"a"`
	EventTime int64  `json:"E"`
}

// Run dials the feed and keeps a session alive until ctx is cancelled, backing off
// exponentially between attempts.
func (f *Feed) Run(ctx context.Context, sink exchange.Sink) error {
	if sink == nil {
		return errs.New(component, errs.CodeInvalid, errs.WithMessage("sink required"))
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.opts.InitialBackoff
	b.MaxInterval = f.opts.MaxReconnectInterval

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, _, err := websocket.Dial(ctx, f.opts.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.metrics.reconnect("error")
			f.opts.Logger.Warn("feed dial failed", observability.F("url", f.opts.URL), observability.F("error", err))
			if err := f.sleep(ctx, b); err != nil {
				return err
			}
			continue
		}
		f.metrics.reconnect("success")
		b.Reset()
		conn.SetReadLimit(f.opts.ReadLimit)

		f.mu.Lock()
		f.sessions++
		resumed := f.sessions > 1
		f.mu.Unlock()
		if resumed {
			if err := sink.Publish(ctx, schema.ReconnectEvent(f.opts.Clock())); err != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return err
			}
		}
		f.opts.Logger.Info("feed connected", observability.F("url", f.opts.URL), observability.F("resumed", resumed))

		cause := f.session(ctx, conn, sink)
		_ = conn.Close(websocket.StatusNormalClosure, "")
		if ctx.Err() != nil {
			return ctx.Err()
		}
		reason := "session closed"
		if cause != nil {
			reason = cause.Error()
		}
		f.opts.Logger.Warn("feed disconnected", observability.F("reason", reason))
		if err := sink.Publish(ctx, schema.DisconnectEvent(reason, f.opts.Clock())); err != nil {
			return err
		}
		if err := f.sleep(ctx, b); err != nil {
			return err
		}
	}
}

func (f *Feed) sleep(ctx context.Context, b *backoff.ExponentialBackOff) error {
	wait := b.NextBackOff()
	if wait == backoff.Stop {
		wait = f.opts.MaxReconnectInterval
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// session runs the read and ping loops for one connection and returns the first failure.
func (f *Feed) session(ctx context.Context, conn *websocket.Conn, sink exchange.Sink) error {
	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := f.subscribe(sessCtx, conn); err != nil {
		return err
	}

	errCh := make(chan error, 2)
	var wg conc.WaitGroup
	wg.Go(func() { errCh <- f.readLoop(sessCtx, conn, sink) })
	wg.Go(func() { errCh <- f.pingLoop(sessCtx, conn) })
	first := <-errCh
	cancel()
	wg.Wait()
	return first
}

func (f *Feed) subscribe(ctx context.Context, conn *websocket.Conn) error {
	if len(f.opts.Subscribe) == 0 {
		return nil
	}
	req := subscribeRequest{Method: "SUBSCRIBE", Params: f.opts.Subscribe, ID: f.msgID.Add(1)}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal subscribe: %w", err)
	}
	writeCtx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}
	f.opts.Logger.Debug("feed subscribed", observability.F("streams", strings.Join(f.opts.Subscribe, ",")))
	return nil
}

func (f *Feed) pingLoop(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(f.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
		err := conn.Ping(pingCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("ping: %w", err)
		}
	}
}

func (f *Feed) readLoop(ctx context.Context, conn *websocket.Conn, sink exchange.Sink) error {
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return ctx.Err()
			}
			if status := websocket.CloseStatus(err); status != -1 {
				return fmt.Errorf("remote closed with status %d", status)
			}
			return fmt.Errorf("read: %w", err)
		}
		if msgType != websocket.MessageText {
			continue
		}
		tick, ok, err := f.decode(data)
		if err != nil {
			f.metrics.message("invalid")
			f.opts.Logger.Debug("feed message dropped", observability.F("error", err))
			continue
		}
		if !ok {
			f.metrics.message("ignored")
			continue
		}
		f.metrics.message("ok")
		if err := sink.Publish(ctx, schema.TickEvent(tick)); err != nil {
			return err
		}
	}
}

// decode parses one frame. ok is false for control responses and other symbols.
func (f *Feed) decode(data []byte) (schema.Tick, bool, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return schema.Tick{}, false, fmt.Errorf("decode frame: %w", err)
	}
	if env.ID > 0 && len(env.Data) == 0 {
		if env.Error != nil {
			f.opts.Logger.Warn("feed control error",
				observability.F("id", env.ID),
				observability.F("code", env.Error.Code),
				observability.F("message", env.Error.Msg))
		}
		return schema.Tick{}, false, nil
	}
	payload := data
	if len(env.Data) > 0 {
		payload = env.Data
	}
	var bt bookTicker
	if err := json.Unmarshal(payload, &bt); err != nil {
		return schema.Tick{}, false, fmt.Errorf("decode book ticker: %w", err)
	}
	if bt.Bid == "" && bt.Ask == "" {
		return schema.Tick{}, false, nil
	}
	if f.opts.VenueSymbol != "" && !strings.EqualFold(bt.Symbol, f.opts.VenueSymbol) {
		return schema.Tick{}, false, nil
	}
	bid, err := decimal.NewFromString(bt.Bid)
	if err != nil {
		return schema.Tick{}, false, fmt.Errorf("bid %q: %w", bt.Bid, err)
	}
	ask, err := decimal.NewFromString(bt.Ask)
	if err != nil {
		return schema.Tick{}, false, fmt.Errorf("ask %q: %w", bt.Ask, err)
	}
	at := f.opts.Clock()
	if bt.EventTime > 0 {
		at = time.UnixMilli(bt.EventTime)
	}
	return schema.Tick{Symbol: f.opts.Symbol, BestBid: bid, BestAsk: ask, Time: at}, true, nil
}
