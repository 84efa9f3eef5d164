package backtest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuyAndHoldTracksPrice(t *testing.T) {
	bars := barsFromPrices(100, 110, 120)
	result, err := BuyAndHold(decimal.NewFromInt(10000), bars, 0.04)
	require.NoError(t, err)

	assert.Equal(t, ModeBuyHold, result.Mode)
	require.Len(t, result.Transactions, 1)
	assert.Equal(t, TransactionBuy, result.Transactions[0].Type)

	require.Len(t, result.EquityCurve, 3)
	assert.InDelta(t, 10000.0, result.EquityCurve[0].Value.InexactFloat64(), 0.01)
	assert.InDelta(t, 11000.0, result.EquityCurve[1].Value.InexactFloat64(), 0.01)
	assert.InDelta(t, 12000.0, result.EquityCurve[2].Value.InexactFloat64(), 0.01)

	assert.InDelta(t, 0.20, result.Summary.TotalReturn, 1e-9)
	require.Len(t, result.OpenLots, 1)
	assert.True(t, result.OpenLots[0].PurchasePrice.Equal(dec(100)))
}

func TestShortAndHoldProfitsOnDecline(t *testing.T) {
	bars := barsFromPrices(100, 90, 80)
	result, err := ShortAndHold(decimal.NewFromInt(10000), bars, 0.04)
	require.NoError(t, err)

	assert.Equal(t, ModeShortHold, result.Mode)
	require.Len(t, result.Transactions, 1)
	assert.Equal(t, TransactionShort, result.Transactions[0].Type)

	// 100 shares at 100: each dollar of decline is +100.
	require.Len(t, result.EquityCurve, 3)
	assert.InDelta(t, 11000.0, result.EquityCurve[1].Value.InexactFloat64(), 0.01)
	assert.InDelta(t, 12000.0, result.EquityCurve[2].Value.InexactFloat64(), 0.01)
	assert.Empty(t, result.OpenLots)
}

func TestHoldStrategySkipsLeadingGaps(t *testing.T) {
	bars := barsFromPrices(0, 0, 100, 110)
	result, err := BuyAndHold(decimal.NewFromInt(10000), bars, 0.04)
	require.NoError(t, err)

	// Entry waits for the first valid bar; gap days carry capital flat.
	require.Len(t, result.Transactions, 1)
	assert.True(t, result.Transactions[0].Date.Equal(bars[2].Date))
	assert.InDelta(t, 10000.0, result.EquityCurve[0].Value.InexactFloat64(), 0.01)
	assert.Len(t, result.Warnings, 2)
}

func TestHoldStrategyRejectsAllGapSeries(t *testing.T) {
	bars := barsFromPrices(0, 0)
	_, err := BuyAndHold(decimal.NewFromInt(10000), bars, 0.04)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "bars", verr.Field)
}

func TestHoldStrategyRejectsNonPositiveCapital(t *testing.T) {
	_, err := ShortAndHold(decimal.Zero, barsFromPrices(100, 110), 0.04)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "initialCapital", verr.Field)
}

// A hold strategy run on a flat series and a grid run on the same series must
// agree on every curve-derived metric, because both flow through the same
// derivation.
func TestComparisonMetricsShareDerivation(t *testing.T) {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]PriceBar, 40)
	for i := range bars {
		bars[i] = PriceBar{Date: start.AddDate(0, 0, i), Close: dec(100), AdjClose: dec(100)}
	}

	hold, err := BuyAndHold(decimal.NewFromInt(10000), bars, 0.0)
	require.NoError(t, err)

	params := testParams()
	params.RiskFreeRate = 0.0
	grid, err := Run(params, bars)
	require.NoError(t, err)

	// Flat price: no drawdown, no volatility, zero return on both sides.
	assert.Equal(t, hold.Summary.TotalReturn, grid.Summary.TotalReturn)
	assert.Equal(t, hold.Summary.MaxDrawdown, grid.Summary.MaxDrawdown)
	assert.Equal(t, hold.Summary.Volatility, grid.Summary.Volatility)
	assert.Equal(t, hold.Summary.CAGR, grid.Summary.CAGR)
}
