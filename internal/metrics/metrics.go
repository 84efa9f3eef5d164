// Package metrics computes return and risk statistics from a daily portfolio
// value series.
//
// Every percentage-like value that enters or leaves this package is a decimal
// fraction (0.6640 means 66.40%). Rendering as a human-readable percentage is
// the caller's concern, at the output boundary only.
package metrics

import (
	"math"
	"time"
)

// TradingDaysPerYear is the annualization basis for volatility and downside
// deviation. CAGR uses calendar years instead; the two bases are intentionally
// different and must not be conflated.
const TradingDaysPerYear = 252

// DaysPerYear is the calendar-year basis used by CAGR.
const DaysPerYear = 365.25

// SentinelRatio is returned by the risk-adjusted ratios when the denominator
// is zero but the excess return is positive.
const SentinelRatio = 999.0

// CAGR computes the compound annual growth rate between two portfolio values
// over a calendar date range. The year count is (end-start)/365.25 days,
// never a trading-day count.
//
// Returns 0 when the range is empty or inverted, and -1 (total loss) when the
// final value is non-positive.
func CAGR(finalValue, initialValue float64, start, end time.Time) float64 {
	years := end.Sub(start).Hours() / 24 / DaysPerYear
	if years <= 0 {
		return 0
	}
	if finalValue <= 0 {
		return -1
	}
	if initialValue <= 0 {
		return 0
	}
	return math.Pow(finalValue/initialValue, 1/years) - 1
}

// DailyReturns derives day-over-day fractional returns from a value series.
// Days following a zero value are skipped.
func DailyReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		returns = append(returns, values[i]/values[i-1]-1)
	}
	return returns
}

// MaxDrawdown runs the peak-tracking drawdown algorithm over a daily value
// series. Both results are negative fractions or zero: maxDrawdown is the
// deepest peak-to-trough decline, avgDrawdown the mean of the below-peak
// fractions encountered.
func MaxDrawdown(values []float64) (maxDrawdown, avgDrawdown float64) {
	if len(values) == 0 {
		return 0, 0
	}

	peak := values[0]
	var sum float64
	var count int

	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		dd := (v - peak) / peak
		if dd < maxDrawdown {
			maxDrawdown = dd
		}
		if dd < 0 {
			sum += dd
			count++
		}
	}

	if count > 0 {
		avgDrawdown = sum / float64(count)
	}
	return maxDrawdown, avgDrawdown
}

// Volatility annualizes the sample standard deviation of daily returns using
// the trading-day basis (sqrt of 252).
func Volatility(dailyReturns []float64) float64 {
	if len(dailyReturns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range dailyReturns {
		sum += r
	}
	mean := sum / float64(len(dailyReturns))

	var variance float64
	for _, r := range dailyReturns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(dailyReturns) - 1)

	return math.Sqrt(variance) * math.Sqrt(TradingDaysPerYear)
}

// DownsideDeviation annualizes the deviation of daily returns below the
// minimum-acceptable daily return. Returns at or above mar do not contribute.
func DownsideDeviation(dailyReturns []float64, mar float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}

	var sum float64
	var count int
	for _, r := range dailyReturns {
		if r < mar {
			diff := r - mar
			sum += diff * diff
			count++
		}
	}
	if count == 0 {
		return 0
	}

	return math.Sqrt(sum/float64(count)) * math.Sqrt(TradingDaysPerYear)
}

// SharpeRatio is (CAGR - riskFreeRate) / volatility, with the sentinel policy
// for a zero denominator: positive excess return yields SentinelRatio, a
// non-positive one yields 0.
func SharpeRatio(cagr, volatility, riskFreeRate float64) float64 {
	excess := cagr - riskFreeRate
	if volatility == 0 {
		if excess > 0 {
			return SentinelRatio
		}
		return 0
	}
	return excess / volatility
}

// SortinoRatio is (CAGR - mar) / downsideDeviation with the same zero-
// denominator policy as SharpeRatio. mar is annualized.
func SortinoRatio(cagr, downsideDeviation, mar float64) float64 {
	excess := cagr - mar
	if downsideDeviation == 0 {
		if excess > 0 {
			return SentinelRatio
		}
		return 0
	}
	return excess / downsideDeviation
}

// CalmarRatio is CAGR / |maxDrawdown|. The drawdown argument is accepted with
// either sign convention; only its absolute value enters the ratio. A zero
// drawdown follows the sentinel policy.
func CalmarRatio(cagr, maxDrawdown float64) float64 {
	dd := math.Abs(maxDrawdown)
	if dd == 0 {
		if cagr > 0 {
			return SentinelRatio
		}
		return 0
	}
	return cagr / dd
}
