package policy

import (
	"github.com/shopspring/decimal"

	"github.com/dcagrid/backtester/pkg/utils"
)

// TrailingBuy is the trailing-stop buy state machine. It activates once the
// price has dropped the activation fraction below the local peak seen since
// the last reset, tracks the lowest price while active, and fires when the
// price rebounds the rebound fraction off that low.
type TrailingBuy struct {
	Activation decimal.Decimal
	Rebound    decimal.Decimal

	active bool
	peak   decimal.Decimal
	low    decimal.Decimal
}

// NewTrailingBuy creates a trailing buy tracker seeded with a starting peak.
func NewTrailingBuy(activation, rebound, startPrice decimal.Decimal) *TrailingBuy {
	return &TrailingBuy{
		Activation: activation,
		Rebound:    rebound,
		peak:       startPrice,
	}
}

// Active reports whether the tracker is armed.
func (t *TrailingBuy) Active() bool {
	return t.active
}

// Observe feeds the day's price and reports whether the buy fires.
func (t *TrailingBuy) Observe(price decimal.Decimal) bool {
	if price.GreaterThan(t.peak) {
		t.peak = price
	}

	if !t.active {
		trigger := t.peak.Mul(decimal.NewFromInt(1).Sub(t.Activation))
		if price.LessThanOrEqual(trigger) {
			t.active = true
			t.low = price
		}
		return false
	}

	if price.LessThan(t.low) {
		t.low = price
		return false
	}

	fire := t.low.Mul(decimal.NewFromInt(1).Add(t.Rebound))
	return price.GreaterThanOrEqual(fire)
}

// Cancel disarms a pending trailing buy. The peak keeps tracking so a later
// drop can re-activate it.
func (t *TrailingBuy) Cancel() {
	t.active = false
}

// Reset clears all trailing state and re-seeds the peak, used after a sell.
func (t *TrailingBuy) Reset(price decimal.Decimal) {
	t.active = false
	t.peak = price
	t.low = decimal.Zero
}

// TrailingSell mirrors TrailingBuy on the exit side: it activates once the
// price has risen the activation fraction above the reference (average cost),
// tracks the highest price while active, and fires when the price pulls back
// the pullback fraction off that high.
type TrailingSell struct {
	Activation decimal.Decimal
	Pullback   decimal.Decimal

	active bool
	high   decimal.Decimal
}

// NewTrailingSell creates a trailing sell tracker.
func NewTrailingSell(activation, pullback decimal.Decimal) *TrailingSell {
	return &TrailingSell{
		Activation: activation,
		Pullback:   pullback,
	}
}

// Active reports whether the tracker is armed.
func (t *TrailingSell) Active() bool {
	return t.active
}

// Observe feeds the day's price and the current reference price (average
// cost) and reports whether the sell fires.
func (t *TrailingSell) Observe(price, reference decimal.Decimal) bool {
	if !t.active {
		if reference.LessThanOrEqual(decimal.Zero) {
			return false
		}
		if utils.PercentChange(reference, price).GreaterThanOrEqual(t.Activation) {
			t.active = true
			t.high = price
		}
		return false
	}

	if price.GreaterThan(t.high) {
		t.high = price
		return false
	}

	fire := t.high.Mul(decimal.NewFromInt(1).Sub(t.Pullback))
	return price.LessThanOrEqual(fire)
}

// Reset clears all trailing state, used after a sell or when no lots remain.
func (t *TrailingSell) Reset() {
	t.active = false
	t.high = decimal.Zero
}
