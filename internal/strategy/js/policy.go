// Package js hosts quoting policies written in JavaScript.
//
// A policy module assigns module.exports with a metadata object and a computeTargets
// function:
//
//	module.exports = {
//	  metadata: { name: "spread" },
//	  computeTargets(snapshot, position, config) {
//	    return [{ channel: "buy", price: snapshot.mid * 0.99, size: 1 }];
//	  },
//	};
package js

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/shopspring/decimal"

	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
	"github.com/namn-grg/dual-channel-bot/internal/observability"
	"github.com/namn-grg/dual-channel-bot/internal/strategy"
)

const defaultCallTimeout = 50 * time.Millisecond

var (
	// ErrFunctionMissing is returned when the module does not export computeTargets.
	ErrFunctionMissing = errors.New("policy function missing")
	// ErrTimeout reports a computeTargets call interrupted for running too long.
	ErrTimeout = errors.New("policy call timed out")
)

// Metadata describes a policy module.
type Metadata struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// Option customises a Policy.
type Option func(*Policy)

// WithConfig passes a config object as the third computeTargets argument.
func WithConfig(cfg map[string]any) Option {
	return func(p *Policy) {
		p.config = make(map[string]any, len(cfg))
		for k, v := range cfg {
			p.config[k] = v
		}
	}
}

// WithLogger routes console output and validation warnings.
func WithLogger(logger observability.Logger) Option {
	return func(p *Policy) {
		p.logger = logger
	}
}

// WithTimeout bounds a single computeTargets call.
func WithTimeout(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithInstrument rounds prices to tick and sizes down to lot.
func WithInstrument(tick, lot decimal.Decimal) Option {
	return func(p *Policy) {
		p.tick = tick
		p.lot = lot
	}
}

// Policy is a strategy.Policy backed by a goja runtime. Calls are serialised.
type Policy struct {
	mu      sync.Mutex
	meta    Metadata
	hash    string
	rt      *goja.Runtime
	fn      goja.Callable
	config  map[string]any
	timeout time.Duration
	tick    decimal.Decimal
	lot     decimal.Decimal
	logger  observability.Logger
}

var _ strategy.Policy = (*Policy)(nil)

// Load compiles the policy module at path.
func Load(path string, opts ...Option) (*Policy, error) {
	// #nosec G304 -- path comes from operator configuration.
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("js policy: read %q: %w", path, err)
	}
	return New(path, string(source), opts...)
}

// New compiles source under the given file name.
func New(filename, source string, opts ...Option) (*Policy, error) {
	prog, err := goja.Compile(filename, source, true)
	if err != nil {
		return nil, fmt.Errorf("js policy: compile %q: %w", filename, err)
	}
	p := &Policy{
		config:  map[string]any{},
		timeout: defaultCallTimeout,
		logger:  observability.Noop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	p.logger = observability.Or(p.logger)

	rt := goja.New()
	exports, err := runModule(rt, prog, p.logger)
	if err != nil {
		return nil, fmt.Errorf("js policy %q: %w", filename, err)
	}
	meta, err := extractMetadata(rt, exports)
	if err != nil {
		return nil, fmt.Errorf("js policy %q: %w", filename, err)
	}
	value := exports.Get("computeTargets")
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, fmt.Errorf("js policy %q: %w", filename, ErrFunctionMissing)
	}
	fn, ok := goja.AssertFunction(value)
	if !ok {
		return nil, fmt.Errorf("js policy %q: computeTargets not callable", filename)
	}

	sum := sha256.Sum256([]byte(source))
	p.meta = meta
	p.hash = hex.EncodeToString(sum[:])
	p.rt = rt
	p.fn = fn
	return p, nil
}

// Name implements strategy.Policy.
func (p *Policy) Name() string { return p.meta.Name }

// Metadata returns the module metadata.
func (p *Policy) Metadata() Metadata { return p.meta }

// Hash is the sha256 of the module source.
func (p *Policy) Hash() string { return p.hash }

// ComputeTargets implements strategy.Policy. Malformed entries are dropped with a warning;
// a thrown exception, timeout or non-array result fails the whole call.
func (p *Policy) ComputeTargets(snap schema.MarketSnapshot, pos schema.PositionSnapshot) ([]schema.Target, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rt.ClearInterrupt()
	timer := time.AfterFunc(p.timeout, func() {
		p.rt.Interrupt(ErrTimeout)
	})
	value, err := p.fn(goja.Undefined(),
		p.rt.ToValue(snapshotArg(snap)),
		p.rt.ToValue(positionArg(pos)),
		p.rt.ToValue(p.config),
	)
	timer.Stop()
	p.rt.ClearInterrupt()
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, fmt.Errorf("js policy %s: %w", p.meta.Name, ErrTimeout)
		}
		return nil, fmt.Errorf("js policy %s: computeTargets: %w", p.meta.Name, err)
	}
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, nil
	}

	var raw []rawTarget
	if err := p.rt.ExportTo(value, &raw); err != nil {
		return nil, fmt.Errorf("js policy %s: result must be an array of targets: %w", p.meta.Name, err)
	}
	out := make([]schema.Target, 0, len(raw))
	seen := make(map[schema.ChannelID]struct{}, len(raw))
	for idx, entry := range raw {
		target, err := p.convert(entry)
		if err != nil {
			p.logger.Warn("js policy target dropped",
				observability.F("policy", p.meta.Name),
				observability.F("index", idx),
				observability.F("error", err.Error()))
			continue
		}
		if _, dup := seen[target.Channel]; dup {
			return nil, fmt.Errorf("js policy %s: duplicate target for channel %s", p.meta.Name, target.Channel)
		}
		seen[target.Channel] = struct{}{}
		out = append(out, target)
	}
	return out, nil
}

type rawTarget struct {
	Channel string `json:"channel"`
	Price   any    `json:"price"`
	Size    any    `json:"size"`
}

func (p *Policy) convert(raw rawTarget) (schema.Target, error) {
	id := strings.TrimSpace(raw.Channel)
	if id == "" {
		return schema.Target{}, fmt.Errorf("channel required")
	}
	price, err := toDecimal(raw.Price)
	if err != nil {
		return schema.Target{}, fmt.Errorf("price: %w", err)
	}
	size, err := toDecimal(raw.Size)
	if err != nil {
		return schema.Target{}, fmt.Errorf("size: %w", err)
	}
	if price.IsNegative() || size.IsNegative() {
		return schema.Target{}, fmt.Errorf("negative price or size")
	}
	if p.tick.IsPositive() {
		price = price.Div(p.tick).Round(0).Mul(p.tick)
	}
	return schema.Target{
		Channel: schema.ChannelID(id),
		Price:   price,
		Size:    strategy.RoundDown(size, p.lot),
	}, nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, nil
	case int64:
		return decimal.NewFromInt(n), nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero, fmt.Errorf("not a finite number")
		}
		return decimal.NewFromFloat(n), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid number %q", n)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported type %T", v)
	}
}

func snapshotArg(s schema.MarketSnapshot) map[string]any {
	return map[string]any{
		"bid":  s.BestBid.InexactFloat64(),
		"ask":  s.BestAsk.InexactFloat64(),
		"mid":  s.Mid.InexactFloat64(),
		"time": s.Time.UnixMilli(),
	}
}

func positionArg(p schema.PositionSnapshot) map[string]any {
	var opened int64
	if !p.OpenedAt.IsZero() {
		opened = p.OpenedAt.UnixMilli()
	}
	return map[string]any{
		"netSize":       p.NetSize.InexactFloat64(),
		"avgEntryPrice": p.AvgEntryPrice.InexactFloat64(),
		"realizedPnl":   p.RealizedPnL.InexactFloat64(),
		"openedAt":      opened,
	}
}

func extractMetadata(rt *goja.Runtime, exports *goja.Object) (Metadata, error) {
	raw := exports.Get("metadata")
	if raw == nil || goja.IsUndefined(raw) || goja.IsNull(raw) {
		return Metadata{}, fmt.Errorf("metadata export missing")
	}
	var meta Metadata
	if err := rt.ExportTo(raw, &meta); err != nil {
		return Metadata{}, fmt.Errorf("metadata export invalid: %w", err)
	}
	meta.Name = strings.ToLower(strings.TrimSpace(meta.Name))
	if meta.Name == "" {
		return Metadata{}, fmt.Errorf("metadata name required")
	}
	return meta, nil
}

func runModule(rt *goja.Runtime, program *goja.Program, logger observability.Logger) (*goja.Object, error) {
	rt.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	module := rt.NewObject()
	exports := rt.NewObject()
	if err := module.Set("exports", exports); err != nil {
		return nil, fmt.Errorf("module init: %w", err)
	}
	if err := rt.Set("exports", exports); err != nil {
		return nil, fmt.Errorf("module init: %w", err)
	}
	if err := rt.Set("module", module); err != nil {
		return nil, fmt.Errorf("module init: %w", err)
	}
	if err := rt.Set("console", buildConsole(rt, logger)); err != nil {
		return nil, fmt.Errorf("module init: %w", err)
	}
	if _, err := rt.RunProgram(program); err != nil {
		return nil, fmt.Errorf("module run: %w", err)
	}
	object := module.Get("exports").ToObject(rt)
	if object == nil {
		return nil, fmt.Errorf("module exports must be an object")
	}
	return object, nil
}

func buildConsole(rt *goja.Runtime, logger observability.Logger) *goja.Object {
	console := rt.NewObject()
	emit := func(level func(string, ...observability.Field)) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, arg := range call.Arguments {
				parts = append(parts, arg.String())
			}
			level("js console", observability.F("message", strings.Join(parts, " ")))
			return goja.Undefined()
		}
	}
	_ = console.Set("log", emit(logger.Debug))
	_ = console.Set("info", emit(logger.Info))
	_ = console.Set("warn", emit(logger.Warn))
	_ = console.Set("error", emit(logger.Error))
	return console
}
