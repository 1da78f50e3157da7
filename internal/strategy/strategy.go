// Package strategy defines the quoting policy contract consumed by the event loop.
package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
)

// Policy computes the desired target of every channel for the current cycle.
// Implementations must not retain or mutate their arguments. A channel missing from the
// result is paused.
type Policy interface {
	Name() string
	ComputeTargets(snap schema.MarketSnapshot, pos schema.PositionSnapshot) ([]schema.Target, error)
}

// PolicyFunc adapts a plain function to Policy.
type PolicyFunc func(snap schema.MarketSnapshot, pos schema.PositionSnapshot) ([]schema.Target, error)

// Name implements Policy.
func (PolicyFunc) Name() string { return "func" }

// ComputeTargets implements Policy.
func (f PolicyFunc) ComputeTargets(snap schema.MarketSnapshot, pos schema.PositionSnapshot) ([]schema.Target, error) {
	return f(snap, pos)
}

// RoundDown truncates v to a multiple of step. A non-positive step leaves v unchanged.
func RoundDown(v, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return v
	}
	return v.Div(step).Floor().Mul(step)
}

// RoundUp rounds v up to a multiple of step. A non-positive step leaves v unchanged.
func RoundUp(v, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return v
	}
	return v.Div(step).Ceil().Mul(step)
}
