// Package provider abstracts where price history and beta coefficients come
// from, so the engines and the API stay source-agnostic.
package provider

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/dcagrid/backtester/internal/backtest"
)

// PriceProvider returns daily bars for a symbol, sorted ascending by date.
type PriceProvider interface {
	DailyBars(ctx context.Context, symbol string) ([]backtest.PriceBar, error)
}

// BetaProvider returns a symbol's beta coefficient. Implementations degrade
// gracefully: an unknown symbol yields a neutral beta of 1.0, never an error.
type BetaProvider interface {
	Beta(ctx context.Context, symbol string) decimal.Decimal
}
