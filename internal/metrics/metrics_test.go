package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestCAGRCalendarYearBasis(t *testing.T) {
	// Documented reference value. A trading-day year count would miss this
	// by a wide margin.
	got := CAGR(827777.85, 100000, date("2021-09-01"), date("2025-10-26"))
	assert.InDelta(t, 0.6640, got, 0.001)
}

func TestCAGRDegenerateInputs(t *testing.T) {
	start := date("2024-01-01")

	assert.Equal(t, 0.0, CAGR(200, 100, start, start), "zero-length range")
	assert.Equal(t, 0.0, CAGR(200, 100, start, start.AddDate(-1, 0, 0)), "inverted range")
	assert.Equal(t, -1.0, CAGR(0, 100, start, start.AddDate(1, 0, 0)), "total loss")
	assert.Equal(t, -1.0, CAGR(-50, 100, start, start.AddDate(1, 0, 0)), "negative final value")
	assert.Equal(t, 0.0, CAGR(200, 0, start, start.AddDate(1, 0, 0)), "zero initial value")
}

func TestCAGROneYearDouble(t *testing.T) {
	start := date("2023-01-01")
	end := start.Add(time.Duration(DaysPerYear * 24 * float64(time.Hour)))
	assert.InDelta(t, 1.0, CAGR(200, 100, start, end), 1e-9)
}

func TestDailyReturns(t *testing.T) {
	returns := DailyReturns([]float64{100, 110, 99})
	require.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[0], 1e-9)
	assert.InDelta(t, -0.10, returns[1], 1e-9)

	assert.Nil(t, DailyReturns([]float64{100}))
}

func TestMaxDrawdownSign(t *testing.T) {
	maxDD, avgDD := MaxDrawdown([]float64{100, 120, 90, 110, 80})

	// 120 -> 80 is the deepest decline
	assert.InDelta(t, -1.0/3.0, maxDD, 1e-9)
	assert.LessOrEqual(t, maxDD, 0.0)
	assert.LessOrEqual(t, avgDD, 0.0)
	assert.GreaterOrEqual(t, maxDD, -1.0)
}

func TestMaxDrawdownAllIncreasing(t *testing.T) {
	maxDD, avgDD := MaxDrawdown([]float64{100, 101, 105, 200})
	assert.Equal(t, 0.0, maxDD)
	assert.Equal(t, 0.0, avgDD)
}

func TestMaxDrawdownEmpty(t *testing.T) {
	maxDD, avgDD := MaxDrawdown(nil)
	assert.Equal(t, 0.0, maxDD)
	assert.Equal(t, 0.0, avgDD)
}

func TestVolatilityAnnualization(t *testing.T) {
	// Alternating +1%/-1% daily returns: sample stddev is known, and the
	// annualization factor must be sqrt(252).
	returns := []float64{0.01, -0.01, 0.01, -0.01, 0.01, -0.01}
	daily := Volatility(returns) / math.Sqrt(TradingDaysPerYear)
	assert.InDelta(t, 0.010954, daily, 1e-4)

	assert.Equal(t, 0.0, Volatility([]float64{0.01}))
	assert.Equal(t, 0.0, Volatility(nil))
}

func TestDownsideDeviationOnlyBelowMAR(t *testing.T) {
	// Returns above the threshold must not contribute.
	allUp := []float64{0.01, 0.02, 0.03}
	assert.Equal(t, 0.0, DownsideDeviation(allUp, 0.0))

	mixed := []float64{0.02, -0.01, 0.03, -0.02}
	dd := DownsideDeviation(mixed, 0.0)
	assert.Greater(t, dd, 0.0)

	// Raising the MAR pulls more observations below it and cannot shrink
	// the deviation toward zero.
	assert.Greater(t, DownsideDeviation(mixed, 0.05), 0.0)
}

func TestSharpeRatioSentinelPolicy(t *testing.T) {
	assert.InDelta(t, 2.0, SharpeRatio(0.30, 0.10, 0.10), 1e-9)
	assert.Equal(t, SentinelRatio, SharpeRatio(0.30, 0, 0.10))
	assert.Equal(t, 0.0, SharpeRatio(0.05, 0, 0.10))
}

func TestSortinoRatioSentinelPolicy(t *testing.T) {
	assert.InDelta(t, 4.0, SortinoRatio(0.30, 0.05, 0.10), 1e-9)
	assert.Equal(t, SentinelRatio, SortinoRatio(0.30, 0, 0.10))
	assert.Equal(t, 0.0, SortinoRatio(0.10, 0, 0.10))
}

func TestCalmarRatioSignInvariance(t *testing.T) {
	// The absolute-value contract: both sign conventions for drawdown must
	// produce the identical ratio.
	withNegative := CalmarRatio(0.6640, -0.6634)
	withPositive := CalmarRatio(0.6640, 0.6634)
	assert.Equal(t, withNegative, withPositive)
	assert.InDelta(t, 1.0009, withNegative, 0.001)
}

func TestCalmarRatioZeroDrawdown(t *testing.T) {
	assert.Equal(t, SentinelRatio, CalmarRatio(0.20, 0))
	assert.Equal(t, 0.0, CalmarRatio(-0.20, 0))
}
