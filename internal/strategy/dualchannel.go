package strategy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
)

var one = decimal.NewFromInt(1)

// DualChannelConfig parameterises the built-in spread policy.
type DualChannelConfig struct {
	BuyChannel  schema.ChannelID
	SellChannel schema.ChannelID

	// Offset is the distance from mid as a fraction (0.005 = 50bps).
	Offset      decimal.Decimal
	ChannelSize decimal.Decimal
	// Leverage multiplies ChannelSize; zero means 1.
	Leverage decimal.Decimal

	// MaxPosition suppresses the side that would grow |net| beyond it. Zero disables.
	MaxPosition decimal.Decimal
	// SkewThreshold is the |net| above which quotes lean against the inventory.
	SkewThreshold decimal.Decimal

	// TakeProfit and StopLoss are fractions of the average entry; zero disables each.
	TakeProfit decimal.Decimal
	StopLoss   decimal.Decimal
	// MaxHold closes a position held this long. ProfitCheckAfter closes one held this long
	// that is in profit. Zero disables each.
	MaxHold          time.Duration
	ProfitCheckAfter time.Duration

	TickSize decimal.Decimal
	LotSize  decimal.Decimal
}

// DualChannel quotes a buy channel below mid and a sell channel above it.
type DualChannel struct {
	cfg  DualChannelConfig
	size decimal.Decimal
}

// NewDualChannel validates cfg and builds the policy.
func NewDualChannel(cfg DualChannelConfig) (*DualChannel, error) {
	if cfg.BuyChannel == "" || cfg.SellChannel == "" {
		return nil, fmt.Errorf("dual channel: buy and sell channel ids required")
	}
	if cfg.BuyChannel == cfg.SellChannel {
		return nil, fmt.Errorf("dual channel: channel ids must differ")
	}
	if cfg.Offset.IsNegative() || cfg.Offset.GreaterThanOrEqual(one) {
		return nil, fmt.Errorf("dual channel: offset %s out of range [0,1)", cfg.Offset)
	}
	if !cfg.ChannelSize.IsPositive() {
		return nil, fmt.Errorf("dual channel: channel size must be positive")
	}
	lev := cfg.Leverage
	if lev.IsZero() {
		lev = one
	}
	if lev.IsNegative() {
		return nil, fmt.Errorf("dual channel: leverage must be positive")
	}
	if cfg.MaxPosition.IsNegative() || cfg.TakeProfit.IsNegative() || cfg.StopLoss.IsNegative() {
		return nil, fmt.Errorf("dual channel: limits must not be negative")
	}
	if cfg.MaxHold < 0 || cfg.ProfitCheckAfter < 0 {
		return nil, fmt.Errorf("dual channel: hold durations must not be negative")
	}
	return &DualChannel{cfg: cfg, size: RoundDown(cfg.ChannelSize.Mul(lev), cfg.LotSize)}, nil
}

// Name implements Policy.
func (p *DualChannel) Name() string { return "dual_channel" }

// ComputeTargets implements Policy.
func (p *DualChannel) ComputeTargets(snap schema.MarketSnapshot, pos schema.PositionSnapshot) ([]schema.Target, error) {
	mid := snap.Mid
	if !mid.IsPositive() {
		return nil, fmt.Errorf("dual channel: snapshot without mid")
	}
	net := pos.NetSize

	if exit, ok := p.exit(snap, pos); ok {
		return []schema.Target{exit}, nil
	}

	buyOff, sellOff := p.cfg.Offset, p.cfg.Offset
	if skew := p.skew(net); !skew.IsZero() {
		// long inventory widens the bid and tightens the ask; short does the reverse
		buyOff = buyOff.Add(skew)
		sellOff = decimal.Max(sellOff.Sub(skew), decimal.Zero)
	}

	out := make([]schema.Target, 0, 2)
	capped := p.cfg.MaxPosition.IsPositive()
	if !capped || net.LessThan(p.cfg.MaxPosition) {
		out = append(out, schema.Target{
			Channel: p.cfg.BuyChannel,
			Price:   RoundDown(mid.Mul(one.Sub(buyOff)), p.cfg.TickSize),
			Size:    p.size,
		})
	}
	if !capped || net.GreaterThan(p.cfg.MaxPosition.Neg()) {
		out = append(out, schema.Target{
			Channel: p.cfg.SellChannel,
			Price:   RoundUp(mid.Mul(one.Add(sellOff)), p.cfg.TickSize),
			Size:    p.size,
		})
	}
	return out, nil
}

// expired applies the holding-time exits. Both need a snapshot time and a known open time.
func (p *DualChannel) expired(now, opened time.Time, move decimal.Decimal) bool {
	if now.IsZero() || opened.IsZero() {
		return false
	}
	held := now.Sub(opened)
	if p.cfg.MaxHold > 0 && held >= p.cfg.MaxHold {
		return true
	}
	return p.cfg.ProfitCheckAfter > 0 && held >= p.cfg.ProfitCheckAfter && move.IsPositive()
}

// skew returns the signed offset adjustment: positive when long beyond the threshold.
func (p *DualChannel) skew(net decimal.Decimal) decimal.Decimal {
	if !p.cfg.MaxPosition.IsPositive() || net.Abs().LessThanOrEqual(p.cfg.SkewThreshold) {
		return decimal.Zero
	}
	k := decimal.Min(net.Abs().Div(p.cfg.MaxPosition), one)
	adj := p.cfg.Offset.Mul(k)
	if net.IsNegative() {
		return adj.Neg()
	}
	return adj
}

// exit returns a single reducing target when the open position hit take-profit or stop-loss,
// was held past MaxHold, or is in profit after ProfitCheckAfter.
// The opposite channel is paused while exiting.
func (p *DualChannel) exit(snap schema.MarketSnapshot, pos schema.PositionSnapshot) (schema.Target, bool) {
	net, entry, mid := pos.NetSize, pos.AvgEntryPrice, snap.Mid
	if net.IsZero() || !entry.IsPositive() {
		return schema.Target{}, false
	}
	move := mid.Sub(entry).Div(entry)
	if net.IsNegative() {
		move = move.Neg()
	}
	hitTP := p.cfg.TakeProfit.IsPositive() && move.GreaterThanOrEqual(p.cfg.TakeProfit)
	hitSL := p.cfg.StopLoss.IsPositive() && move.LessThanOrEqual(p.cfg.StopLoss.Neg())
	if !hitTP && !hitSL && !p.expired(snap.Time, pos.OpenedAt, move) {
		return schema.Target{}, false
	}
	size := RoundDown(net.Abs(), p.cfg.LotSize)
	if !size.IsPositive() {
		return schema.Target{}, false
	}
	if net.IsPositive() {
		price := snap.BestBid
		if !price.IsPositive() {
			price = mid
		}
		return schema.Target{Channel: p.cfg.SellChannel, Price: RoundDown(price, p.cfg.TickSize), Size: size}, true
	}
	price := snap.BestAsk
	if !price.IsPositive() {
		price = mid
	}
	return schema.Target{Channel: p.cfg.BuyChannel, Price: RoundUp(price, p.cfg.TickSize), Size: size}, true
}
