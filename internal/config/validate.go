package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/namn-grg/dual-channel-bot/errs"
)

const component = "config"

func invalid(format string, args ...any) error {
	return errs.New(component, errs.CodeConfig, errs.WithMessage(fmt.Sprintf(format, args...)))
}

// Validate performs semantic validation. Every failure carries errs.CodeConfig.
func (c Config) Validate() error {
	switch c.Network {
	case NetworkTestnet, NetworkMainnet:
	default:
		return invalid("network must be testnet or mainnet, got %q", c.Network)
	}
	if c.Symbol == "" {
		return invalid("symbol required")
	}
	if !c.Instrument.TickSize.IsPositive() || !c.Instrument.LotSize.IsPositive() {
		return invalid("instrument tickSize and lotSize must be > 0")
	}

	if len(c.Channels) == 0 {
		return invalid("at least one channel required")
	}
	seen := make(map[string]bool, len(c.Channels))
	for _, ch := range c.Channels {
		if ch.ID == "" {
			return invalid("channel id required")
		}
		if seen[ch.ID] {
			return invalid("duplicate channel id %q", ch.ID)
		}
		seen[ch.ID] = true
		if ch.Side != "buy" && ch.Side != "sell" {
			return invalid("channel %s: side must be buy or sell", ch.ID)
		}
	}

	switch c.Limits.Scope {
	case "global", "per_channel":
	default:
		return invalid("limits scope must be global or per_channel")
	}
	if c.Limits.MaxPositionSize.IsNegative() || c.Limits.MaxOrderSize.IsNegative() {
		return invalid("limits must be >= 0")
	}
	for id, limit := range c.Limits.PerChannel {
		if !seen[id] {
			return invalid("limits perChannel names unknown channel %q", id)
		}
		if limit.IsNegative() {
			return invalid("limits perChannel %s must be >= 0", id)
		}
	}
	if c.Tolerance.Price.IsNegative() || c.Tolerance.Size.IsNegative() {
		return invalid("tolerance must be >= 0")
	}

	r := c.Reconciler
	if r.MaxOutstanding <= 0 || r.Burst <= 0 {
		return invalid("reconciler maxOutstanding and burst must be > 0")
	}
	if r.Rate < 0 {
		return invalid("reconciler rate must be >= 0")
	}
	if r.CommandTimeout <= 0 {
		return invalid("reconciler commandTimeout must be > 0")
	}
	if r.Retry.MaxAttempts <= 0 || r.Retry.Multiplier < 1 {
		return invalid("reconciler retry needs maxAttempts > 0 and multiplier >= 1")
	}
	if r.Retry.RandomizationFactor < 0 || r.Retry.RandomizationFactor > 1 {
		return invalid("reconciler retry randomizationFactor must be within [0,1]")
	}

	e := c.Engine
	if e.QueueSize <= 0 || e.RebalanceInterval <= 0 || e.StaleAfter <= 0 || e.ShutdownTimeout <= 0 {
		return invalid("engine queueSize and intervals must be > 0")
	}

	if err := c.validatePolicy(); err != nil {
		return err
	}

	if c.Feed.URL != "" && !strings.HasPrefix(c.Feed.URL, "ws://") && !strings.HasPrefix(c.Feed.URL, "wss://") {
		return invalid("feed url must use ws:// or wss://")
	}
	if c.Paper.Volatility < 0 || c.Paper.SpreadBps < 0 || c.Paper.StartPrice.IsNegative() {
		return invalid("paper volatility, spreadBps and startPrice must be >= 0")
	}
	if c.Telemetry.EnableMetrics && c.Telemetry.OTLPEndpoint == "" {
		return invalid("telemetry otlpEndpoint required when metrics are enabled")
	}
	if c.Server.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
			return invalid("server addr %q: %v", c.Server.Addr, err)
		}
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return invalid("log level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return invalid("log format must be text or json")
	}
	return nil
}

func (c Config) validatePolicy() error {
	p := c.Policy
	switch p.Kind {
	case PolicyDualChannel:
		if c.BuyChannel() == "" || c.SellChannel() == "" {
			return invalid("policy dual_channel needs one buy and one sell channel")
		}
		if p.Offset.IsNegative() || p.Offset.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return invalid("policy offset must be within [0,1)")
		}
		if !p.ChannelSize.IsPositive() || !p.Leverage.IsPositive() {
			return invalid("policy channelSize and leverage must be > 0")
		}
		if p.SkewThreshold.IsNegative() || p.TakeProfit.IsNegative() || p.StopLoss.IsNegative() {
			return invalid("policy skewThreshold, takeProfit and stopLoss must be >= 0")
		}
	case PolicyJS:
		if strings.TrimSpace(p.Script) == "" {
			return invalid("policy js requires script")
		}
	default:
		return invalid("policy kind must be %s or %s", PolicyDualChannel, PolicyJS)
	}
	return nil
}

// BuyChannel returns the first buy-side channel id.
func (c Config) BuyChannel() string { return c.firstChannel("buy") }

// SellChannel returns the first sell-side channel id.
func (c Config) SellChannel() string { return c.firstChannel("sell") }

func (c Config) firstChannel(side string) string {
	for _, ch := range c.Channels {
		if ch.Side == side {
			return ch.ID
		}
	}
	return ""
}
