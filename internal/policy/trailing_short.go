package policy

import "github.com/shopspring/decimal"

// TrailingShortEntry is the short-mode mirror of TrailingBuy: it activates
// once the price has risen the activation fraction above the local trough
// seen since the last reset, tracks the highest price while active, and fires
// a short entry when the price pulls back the pullback fraction off that high.
type TrailingShortEntry struct {
	Activation decimal.Decimal
	Pullback   decimal.Decimal

	active bool
	trough decimal.Decimal
	high   decimal.Decimal
}

// NewTrailingShortEntry creates a tracker seeded with a starting trough.
func NewTrailingShortEntry(activation, pullback, startPrice decimal.Decimal) *TrailingShortEntry {
	return &TrailingShortEntry{
		Activation: activation,
		Pullback:   pullback,
		trough:     startPrice,
	}
}

// Active reports whether the tracker is armed.
func (t *TrailingShortEntry) Active() bool {
	return t.active
}

// Observe feeds the day's price and reports whether the entry fires.
func (t *TrailingShortEntry) Observe(price decimal.Decimal) bool {
	if price.LessThan(t.trough) || t.trough.IsZero() {
		t.trough = price
	}

	if !t.active {
		trigger := t.trough.Mul(decimal.NewFromInt(1).Add(t.Activation))
		if price.GreaterThanOrEqual(trigger) {
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

// Cancel disarms a pending entry; the trough keeps tracking.
func (t *TrailingShortEntry) Cancel() {
	t.active = false
}

// Reset clears all state and re-seeds the trough, used after a cover.
func (t *TrailingShortEntry) Reset(price decimal.Decimal) {
	t.active = false
	t.trough = price
	t.high = decimal.Zero
}

// TrailingCover mirrors TrailingSell for closing shorts: it activates once
// the price has dropped the activation fraction below the reference (average
// entry price), tracks the lowest price while active, and fires a cover when
// the price rebounds the rebound fraction off that low.
type TrailingCover struct {
	Activation decimal.Decimal
	Rebound    decimal.Decimal

	active bool
	low    decimal.Decimal
}

// NewTrailingCover creates a trailing cover tracker.
func NewTrailingCover(activation, rebound decimal.Decimal) *TrailingCover {
	return &TrailingCover{
		Activation: activation,
		Rebound:    rebound,
	}
}

// Active reports whether the tracker is armed.
func (t *TrailingCover) Active() bool {
	return t.active
}

// Observe feeds the day's price and the average entry price and reports
// whether the cover fires.
func (t *TrailingCover) Observe(price, reference decimal.Decimal) bool {
	if !t.active {
		if reference.LessThanOrEqual(decimal.Zero) {
			return false
		}
		trigger := reference.Mul(decimal.NewFromInt(1).Sub(t.Activation))
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

// Reset clears all trailing state, used after a cover or when no shorts remain.
func (t *TrailingCover) Reset() {
	t.active = false
	t.low = decimal.Zero
}
