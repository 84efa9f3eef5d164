package backtest

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dcagrid/backtester/internal/risk"
	"github.com/dcagrid/backtester/pkg/utils"
)

// ValidationError is a fatal pre-run parameter failure. It is returned before
// any simulation step executes; nothing mid-run ever raises one.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Field, e.Message)
}

// Params is the immutable configuration for one simulation run. Every
// percentage field is a decimal fraction in [0,1]; raw percentages never
// enter this struct.
type Params struct {
	Mode           Mode
	InitialCapital decimal.Decimal
	LotSize        decimal.Decimal // USD per lot
	MaxLots        int
	MaxLotsToSell  int

	GridInterval      decimal.Decimal
	ProfitRequirement decimal.Decimal

	EnableTrailingBuy     bool
	TrailingBuyActivation decimal.Decimal
	TrailingBuyRebound    decimal.Decimal

	EnableTrailingSell     bool
	TrailingSellActivation decimal.Decimal
	TrailingSellPullback   decimal.Decimal

	EnableIncrementalGrid bool
	ConsecutiveIncrement  decimal.Decimal

	EnableDynamicGrid         bool
	DynamicGridMultiplier     decimal.Decimal
	NormalizeDynamicReference bool

	EnableBetaScaling bool
	Beta              decimal.Decimal // 0 or negative falls back to 1.0
	BetaCoefficient   decimal.Decimal // 0 or negative falls back to 1.0

	// RiskFreeRate is the annual rate used by the ratio metrics.
	RiskFreeRate float64

	// Stops applies to short mode only.
	Stops *risk.StopConfig
}

// DefaultParams returns a baseline long-mode configuration.
func DefaultParams() Params {
	return Params{
		Mode:                   ModeDCA,
		InitialCapital:         decimal.NewFromInt(10000),
		LotSize:                decimal.NewFromInt(1000),
		MaxLots:                10,
		MaxLotsToSell:          1,
		GridInterval:           decimal.NewFromFloat(0.10),
		ProfitRequirement:      decimal.NewFromFloat(0.05),
		TrailingBuyActivation:  decimal.NewFromFloat(0.05),
		TrailingBuyRebound:     decimal.NewFromFloat(0.02),
		TrailingSellActivation: decimal.NewFromFloat(0.05),
		TrailingSellPullback:   decimal.NewFromFloat(0.02),
		ConsecutiveIncrement:   decimal.NewFromFloat(0.05),
		DynamicGridMultiplier:  decimal.NewFromFloat(1),
		RiskFreeRate:           0.04,
	}
}

var one = decimal.NewFromInt(1)

func fractionInRange(d decimal.Decimal) bool {
	return utils.IsWithinRange(d, decimal.Zero, one)
}

// Validate checks the §-level invariants of the configuration. It returns a
// *ValidationError describing the first failure found.
func (p Params) Validate() error {
	if p.Mode != ModeDCA && p.Mode != ModeShortDCA {
		return &ValidationError{Field: "mode", Message: fmt.Sprintf("unknown mode %q", p.Mode)}
	}
	if p.InitialCapital.LessThanOrEqual(decimal.Zero) {
		return &ValidationError{Field: "initialCapital", Message: "must be positive"}
	}
	if p.LotSize.LessThanOrEqual(decimal.Zero) {
		return &ValidationError{Field: "lotSize", Message: "must be positive"}
	}
	if p.MaxLots < 1 {
		return &ValidationError{Field: "maxLots", Message: "must be at least 1"}
	}
	if p.MaxLotsToSell < 1 || p.MaxLotsToSell > p.MaxLots {
		return &ValidationError{Field: "maxLotsToSell", Message: "must be between 1 and maxLots"}
	}

	fractions := map[string]decimal.Decimal{
		"gridInterval":           p.GridInterval,
		"profitRequirement":      p.ProfitRequirement,
		"trailingBuyActivation":  p.TrailingBuyActivation,
		"trailingBuyRebound":     p.TrailingBuyRebound,
		"trailingSellActivation": p.TrailingSellActivation,
		"trailingSellPullback":   p.TrailingSellPullback,
		"consecutiveIncrement":   p.ConsecutiveIncrement,
	}
	for field, value := range fractions {
		if !fractionInRange(value) {
			return &ValidationError{Field: field, Message: "must be a decimal fraction in [0,1]"}
		}
	}

	if p.GridInterval.IsZero() && !p.EnableDynamicGrid {
		return &ValidationError{Field: "gridInterval", Message: "must be positive unless dynamic grid is enabled"}
	}
	if p.EnableDynamicGrid && p.DynamicGridMultiplier.LessThanOrEqual(decimal.Zero) {
		return &ValidationError{Field: "dynamicGridMultiplier", Message: "must be positive"}
	}
	return nil
}

// BetaFactor returns beta x coefficient, degrading gracefully to 1.0 for
// missing components. A missing beta never fails a backtest.
func (p Params) BetaFactor() decimal.Decimal {
	beta := p.Beta
	if beta.LessThanOrEqual(decimal.Zero) {
		beta = one
	}
	coeff := p.BetaCoefficient
	if coeff.LessThanOrEqual(decimal.Zero) {
		coeff = one
	}
	return beta.Mul(coeff)
}

// Effective derives the concrete parameter set the engine operates on. Beta
// scaling is applied here, exactly once per run; the engine body never
// special-cases beta again.
func (p Params) Effective() Params {
	eff := p
	if !p.EnableBetaScaling {
		return eff
	}

	factor := p.BetaFactor()
	eff.GridInterval = p.GridInterval.Mul(factor)
	eff.ProfitRequirement = p.ProfitRequirement.Mul(factor)
	eff.TrailingBuyActivation = p.TrailingBuyActivation.Mul(factor)
	eff.TrailingBuyRebound = p.TrailingBuyRebound.Mul(factor)
	eff.TrailingSellActivation = p.TrailingSellActivation.Mul(factor)
	eff.TrailingSellPullback = p.TrailingSellPullback.Mul(factor)
	eff.ConsecutiveIncrement = p.ConsecutiveIncrement.Mul(factor)
	eff.DynamicGridMultiplier = p.DynamicGridMultiplier.Mul(factor)
	return eff
}
