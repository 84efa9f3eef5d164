// Package risk evaluates the forced-cover thresholds of the short strategy:
// per-lot hard stops, a portfolio-wide stop, and the cascading stop that
// unwinds the position a lot at a time as losses deepen.
package risk

import "github.com/shopspring/decimal"

// StopConfig holds the stop-loss thresholds for a short run. All thresholds
// are decimal fractions of adverse movement.
type StopConfig struct {
	EnableHardStop bool            // per-lot stop
	HardStop       decimal.Decimal // e.g. 0.20: cover a lot once price is 20% above its entry

	EnablePortfolioStop bool
	PortfolioStop       decimal.Decimal // unrealized loss fraction that covers everything

	EnableCascadeStop bool
	CascadeThreshold  decimal.Decimal // loss fraction at which the first forced cover happens
	CascadeStep       decimal.Decimal // additional loss per further forced cover
}

// DefaultStopConfig returns the default short-mode stop thresholds.
func DefaultStopConfig() *StopConfig {
	return &StopConfig{
		EnableHardStop:      true,
		HardStop:            decimal.NewFromFloat(0.25),
		EnablePortfolioStop: true,
		PortfolioStop:       decimal.NewFromFloat(0.30),
		EnableCascadeStop:   false,
		CascadeThreshold:    decimal.NewFromFloat(0.10),
		CascadeStep:         decimal.NewFromFloat(0.05),
	}
}

// Evaluator answers stop-loss questions for one run.
type Evaluator struct {
	config *StopConfig
}

// NewEvaluator creates an evaluator. A nil config disables every stop.
func NewEvaluator(config *StopConfig) *Evaluator {
	if config == nil {
		config = &StopConfig{}
	}
	return &Evaluator{config: config}
}

// LotBreached reports whether a short lot entered at entryPrice has breached
// the hard stop at currentPrice.
func (e *Evaluator) LotBreached(entryPrice, currentPrice decimal.Decimal) bool {
	if !e.config.EnableHardStop || entryPrice.LessThanOrEqual(decimal.Zero) {
		return false
	}
	limit := entryPrice.Mul(decimal.NewFromInt(1).Add(e.config.HardStop))
	return currentPrice.GreaterThanOrEqual(limit)
}

// PortfolioBreached reports whether the position-wide unrealized loss
// fraction has breached the portfolio stop. lossFraction is positive for a
// losing position.
func (e *Evaluator) PortfolioBreached(lossFraction decimal.Decimal) bool {
	if !e.config.EnablePortfolioStop {
		return false
	}
	return lossFraction.GreaterThanOrEqual(e.config.PortfolioStop)
}

// CascadeCount returns how many lots the cascade stop forces covered at the
// given loss fraction: one once the loss exceeds the threshold, one more per
// step beyond it. A loss sitting exactly on the threshold does not fire.
func (e *Evaluator) CascadeCount(lossFraction decimal.Decimal) int {
	if !e.config.EnableCascadeStop || lossFraction.LessThanOrEqual(e.config.CascadeThreshold) {
		return 0
	}
	if e.config.CascadeStep.LessThanOrEqual(decimal.Zero) {
		return 1
	}
	beyond := lossFraction.Sub(e.config.CascadeThreshold).Div(e.config.CascadeStep)
	return 1 + int(beyond.IntPart())
}
