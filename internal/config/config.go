// Package config loads the bot configuration from YAML, environment variables and flags.
package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Network selects the venue environment.
type Network string

const (
	// NetworkTestnet is the default.
	NetworkTestnet Network = "testnet"
	// NetworkMainnet trades real funds.
	NetworkMainnet Network = "mainnet"
)

// Policy kinds.
const (
	PolicyDualChannel = "dual_channel"
	PolicyJS          = "js"
)

// InstrumentConfig holds exchange increments for the traded symbol.
type InstrumentConfig struct {
	TickSize Decimal `yaml:"tickSize"`
	LotSize  Decimal `yaml:"lotSize"`
}

// ChannelConfig declares one quoting channel.
type ChannelConfig struct {
	ID   string `yaml:"id"`
	Side string `yaml:"side"`
}

// LimitsConfig bounds exposure.
type LimitsConfig struct {
	Scope           string             `yaml:"scope"`
	MaxPositionSize Decimal            `yaml:"maxPositionSize"`
	MaxOrderSize    Decimal            `yaml:"maxOrderSize"`
	PerChannel      map[string]Decimal `yaml:"perChannel"`
}

// ToleranceConfig sets how far a live order may drift from its target before a requote.
type ToleranceConfig struct {
	Price Decimal `yaml:"price"`
	Size  Decimal `yaml:"size"`
}

// RetryConfig shapes the reconciler's exponential backoff.
type RetryConfig struct {
	MaxAttempts         int      `yaml:"maxAttempts"`
	InitialInterval     Duration `yaml:"initialInterval"`
	MaxInterval         Duration `yaml:"maxInterval"`
	Multiplier          float64  `yaml:"multiplier"`
	RandomizationFactor float64  `yaml:"randomizationFactor"`
}

// ReconcilerConfig tunes command dispatch.
type ReconcilerConfig struct {
	MaxOutstanding int         `yaml:"maxOutstanding"`
	Rate           float64     `yaml:"rate"`
	Burst          int         `yaml:"burst"`
	CommandTimeout Duration    `yaml:"commandTimeout"`
	PostOnly       bool        `yaml:"postOnly"`
	AdoptOnStartup bool        `yaml:"adoptOnStartup"`
	Retry          RetryConfig `yaml:"retry"`
}

// EngineConfig tunes the event loop.
type EngineConfig struct {
	QueueSize         int      `yaml:"queueSize"`
	RebalanceInterval Duration `yaml:"rebalanceInterval"`
	StaleAfter        Duration `yaml:"staleAfter"`
	ShutdownTimeout   Duration `yaml:"shutdownTimeout"`
}

// PolicyConfig selects and parameterises the quoting policy.
type PolicyConfig struct {
	Kind          string  `yaml:"kind"`
	Offset        Decimal `yaml:"offset"`
	ChannelSize   Decimal `yaml:"channelSize"`
	Leverage      Decimal `yaml:"leverage"`
	SkewThreshold Decimal `yaml:"skewThreshold"`
	TakeProfit    Decimal `yaml:"takeProfit"`
	StopLoss      Decimal `yaml:"stopLoss"`
	// MaxHold and ProfitCheckAfter bound how long a position stays open; negative disables.
	MaxHold          Duration `yaml:"maxHold"`
	ProfitCheckAfter Duration `yaml:"profitCheckAfter"`
	Script           string   `yaml:"script"`
	Timeout          Duration `yaml:"timeout"`
	// Params is passed verbatim to a script policy as its third argument.
	Params map[string]any `yaml:"params"`
}

// FeedConfig points at a websocket market-data stream. An empty URL keeps the paper venue's synthetic feed.
type FeedConfig struct {
	URL          string   `yaml:"url"`
	VenueSymbol  string   `yaml:"venueSymbol"`
	Subscribe    []string `yaml:"subscribe"`
	PingInterval Duration `yaml:"pingInterval"`
}

// PaperConfig tunes the simulated venue.
type PaperConfig struct {
	Latency      Duration `yaml:"latency"`
	TickInterval Duration `yaml:"tickInterval"`
	StartPrice   Decimal  `yaml:"startPrice"`
	Volatility   float64  `yaml:"volatility"`
	SpreadBps    float64  `yaml:"spreadBps"`
	Seed         uint64   `yaml:"seed"`
}

// MarketConfig controls tick recording.
type MarketConfig struct {
	RecordPath string `yaml:"recordPath"`
}

// TelemetryConfig configures the OTLP metrics exporter.
type TelemetryConfig struct {
	EnableMetrics  bool     `yaml:"enableMetrics"`
	OTLPEndpoint   string   `yaml:"otlpEndpoint"`
	OTLPInsecure   bool     `yaml:"otlpInsecure"`
	ServiceName    string   `yaml:"serviceName"`
	MetricInterval Duration `yaml:"metricInterval"`
}

// JournalConfig enables the Postgres order and fill journal.
type JournalConfig struct {
	DSN     string   `yaml:"dsn"`
	Workers int      `yaml:"workers"`
	Queue   int      `yaml:"queue"`
	Timeout Duration `yaml:"timeout"`
}

// ServerConfig enables the read-only status endpoint. An empty Addr disables it.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures the logrus backend.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the full bot configuration.
type Config struct {
	Network    Network          `yaml:"network"`
	Symbol     string           `yaml:"symbol"`
	Instrument InstrumentConfig `yaml:"instrument"`
	Channels   []ChannelConfig  `yaml:"channels"`
	Limits     LimitsConfig     `yaml:"limits"`
	Tolerance  ToleranceConfig  `yaml:"tolerance"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Engine     EngineConfig     `yaml:"engine"`
	Policy     PolicyConfig     `yaml:"policy"`
	Feed       FeedConfig       `yaml:"feed"`
	Paper      PaperConfig      `yaml:"paper"`
	Market     MarketConfig     `yaml:"market"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Journal    JournalConfig    `yaml:"journal"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

// Load reads path (when non-empty), applies defaults and validates the result.
func Load(ctx context.Context, path string) (Config, error) {
	_ = ctx
	var cfg Config
	if strings.TrimSpace(path) != "" {
		raw, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("unmarshal config: %w", err)
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

func readFile(path string) ([]byte, error) {
	file, err := os.Open(filepath.Clean(strings.TrimSpace(path))) // #nosec G304 -- path is operator controlled.
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = file.Close() }()
	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return raw, nil
}

func (c *Config) applyDefaults() {
	c.Network = Network(strings.ToLower(strings.TrimSpace(string(c.Network))))
	if c.Network == "" {
		c.Network = NetworkTestnet
	}
	c.Symbol = strings.ToUpper(strings.TrimSpace(c.Symbol))
	if c.Symbol == "" {
		c.Symbol = "HYPE"
	}
	if c.Instrument.TickSize.IsZero() {
		c.Instrument.TickSize = D(decimal.RequireFromString("0.001"))
	}
	if c.Instrument.LotSize.IsZero() {
		c.Instrument.LotSize = D(decimal.RequireFromString("0.01"))
	}
	if len(c.Channels) == 0 {
		c.Channels = []ChannelConfig{{ID: "long", Side: "buy"}, {ID: "short", Side: "sell"}}
	}
	for i := range c.Channels {
		c.Channels[i].ID = strings.TrimSpace(c.Channels[i].ID)
		c.Channels[i].Side = strings.ToLower(strings.TrimSpace(c.Channels[i].Side))
	}

	c.Limits.Scope = strings.ToLower(strings.TrimSpace(c.Limits.Scope))
	if c.Limits.Scope == "" {
		c.Limits.Scope = "global"
	}

	if c.Tolerance.Price.IsZero() {
		c.Tolerance.Price = c.Instrument.TickSize
	}
	if c.Tolerance.Size.IsZero() {
		c.Tolerance.Size = c.Instrument.LotSize
	}

	r := &c.Reconciler
	if r.MaxOutstanding <= 0 {
		r.MaxOutstanding = 4
	}
	if r.Rate < 0 {
		r.Rate = 0
	}
	if r.Burst <= 0 {
		r.Burst = 1
	}
	if r.CommandTimeout <= 0 {
		r.CommandTimeout = Duration(5 * time.Second)
	}
	if r.Retry.MaxAttempts <= 0 {
		r.Retry.MaxAttempts = 3
	}
	if r.Retry.InitialInterval <= 0 {
		r.Retry.InitialInterval = Duration(200 * time.Millisecond)
	}
	if r.Retry.MaxInterval <= 0 {
		r.Retry.MaxInterval = Duration(2 * time.Second)
	}
	if r.Retry.Multiplier <= 0 {
		r.Retry.Multiplier = 2
	}

	e := &c.Engine
	if e.QueueSize <= 0 {
		e.QueueSize = 1024
	}
	if e.RebalanceInterval <= 0 {
		e.RebalanceInterval = Duration(time.Second)
	}
	if e.StaleAfter <= 0 {
		e.StaleAfter = Duration(5 * time.Second)
	}
	if e.ShutdownTimeout <= 0 {
		e.ShutdownTimeout = Duration(10 * time.Second)
	}

	p := &c.Policy
	p.Kind = strings.ToLower(strings.TrimSpace(p.Kind))
	if p.Kind == "" {
		p.Kind = PolicyDualChannel
		if strings.TrimSpace(p.Script) != "" {
			p.Kind = PolicyJS
		}
	}
	if p.Offset.IsZero() {
		p.Offset = D(decimal.RequireFromString("0.005"))
	}
	if p.ChannelSize.IsZero() {
		p.ChannelSize = D(decimal.NewFromInt(15))
	}
	if p.Leverage.IsZero() {
		p.Leverage = D(decimal.NewFromInt(3))
	}
	lev := p.Leverage.Decimal
	if p.TakeProfit.IsZero() && lev.IsPositive() {
		p.TakeProfit = D(decimal.RequireFromString("0.02").Div(lev))
	}
	if p.StopLoss.IsZero() && lev.IsPositive() {
		p.StopLoss = D(decimal.RequireFromString("0.04").Div(lev))
	}
	if p.MaxHold == 0 {
		p.MaxHold = Duration(time.Hour)
	}
	if p.ProfitCheckAfter == 0 {
		p.ProfitCheckAfter = Duration(30 * time.Minute)
	}
	if p.Timeout <= 0 {
		p.Timeout = Duration(50 * time.Millisecond)
	}

	c.Feed.URL = strings.TrimSpace(c.Feed.URL)
	if c.Paper.TickInterval < 0 {
		c.Paper.TickInterval = 0
	}

	c.Telemetry.OTLPEndpoint = strings.TrimSpace(c.Telemetry.OTLPEndpoint)
	if strings.TrimSpace(c.Telemetry.ServiceName) == "" {
		c.Telemetry.ServiceName = "dualbot"
	}
	if c.Telemetry.MetricInterval <= 0 {
		c.Telemetry.MetricInterval = Duration(15 * time.Second)
	}

	if c.Journal.Workers <= 0 {
		c.Journal.Workers = 2
	}
	if c.Journal.Queue <= 0 {
		c.Journal.Queue = 256
	}
	if c.Journal.Timeout <= 0 {
		c.Journal.Timeout = Duration(3 * time.Second)
	}

	c.Server.Addr = strings.TrimSpace(c.Server.Addr)

	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = "info"
	}
	if strings.TrimSpace(c.Log.Format) == "" {
		c.Log.Format = "text"
	}
}
