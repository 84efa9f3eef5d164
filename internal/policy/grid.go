// Package policy holds the pure pricing rules of the grid strategy: spacing
// between successive buys, the last-buy-price restriction, and the trailing
// stop state machines. Nothing here touches engine state; every decision is a
// function of its inputs.
package policy

import (
	"github.com/dcagrid/backtester/pkg/utils"
	"github.com/shopspring/decimal"
)

// GridSize returns the effective fractional spacing for the next buy.
//
// The incremental formula baseInterval + count*increment applies only when the
// incremental option is on, a buy streak exists, and the current price sits
// below the last buy price. In every other case the base interval is used.
// The streak term is deliberately uncapped; see the grid documentation.
func GridSize(baseInterval, increment decimal.Decimal, consecutiveCount int, lastBuyPrice *decimal.Decimal, currentPrice decimal.Decimal, incrementalEnabled bool) decimal.Decimal {
	if !incrementalEnabled || consecutiveCount <= 0 || lastBuyPrice == nil {
		return baseInterval
	}
	if currentPrice.GreaterThanOrEqual(*lastBuyPrice) {
		return baseInterval
	}
	return baseInterval.Add(increment.Mul(decimal.NewFromInt(int64(consecutiveCount))))
}

// ShortGridSize mirrors GridSize for short entries: the incremental term
// applies only while a streak exists and the current price sits above the
// last entry price.
func ShortGridSize(baseInterval, increment decimal.Decimal, consecutiveCount int, lastEntryPrice *decimal.Decimal, currentPrice decimal.Decimal, incrementalEnabled bool) decimal.Decimal {
	if !incrementalEnabled || consecutiveCount <= 0 || lastEntryPrice == nil {
		return baseInterval
	}
	if currentPrice.LessThanOrEqual(*lastEntryPrice) {
		return baseInterval
	}
	return baseInterval.Add(increment.Mul(decimal.NewFromInt(int64(consecutiveCount))))
}

// BuyAllowed reports whether a buy at currentPrice passes the last-buy-price
// restriction. The restriction is unconditional: once a buy exists, every
// later buy must come in strictly below it, whether or not incremental
// spacing is enabled.
func BuyAllowed(lastBuyPrice *decimal.Decimal, currentPrice decimal.Decimal) bool {
	if lastBuyPrice == nil {
		return true
	}
	return currentPrice.LessThan(*lastBuyPrice)
}

// ShortAllowed is the short-mode mirror of BuyAllowed: each new short entry
// must come in strictly above the last entry price.
func ShortAllowed(lastEntryPrice *decimal.Decimal, currentPrice decimal.Decimal) bool {
	if lastEntryPrice == nil {
		return true
	}
	return currentPrice.GreaterThan(*lastEntryPrice)
}

// DynamicGridSize computes volatility-scaled spacing: sqrt(p) * multiplier / p
// where p is the current price, optionally normalized so the reference price
// maps to 100. Spacing tightens as the price rises and widens as it falls.
//
// Dynamic spacing replaces the incremental formula for a run; the two
// modifiers are never combined.
func DynamicGridSize(currentPrice, referencePrice, multiplier decimal.Decimal, normalize bool) decimal.Decimal {
	effective := currentPrice
	if normalize && referencePrice.GreaterThan(decimal.Zero) {
		effective = currentPrice.Div(referencePrice).Mul(decimal.NewFromInt(100))
	}
	if effective.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return utils.SqrtDecimal(effective).Mul(multiplier).Div(effective)
}
