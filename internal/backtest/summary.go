package backtest

import (
	"github.com/dcagrid/backtester/internal/metrics"
	"github.com/shopspring/decimal"
)

// SummarizeCurve derives the standard metric set from an externally built
// equity curve, e.g. an aggregated portfolio curve.
func SummarizeCurve(initialCapital decimal.Decimal, curve []EquityPoint, transactions []Transaction, riskFreeRate float64) Summary {
	return deriveSummary(initialCapital, curve, transactions, riskFreeRate)
}

// deriveSummary turns a daily equity curve into the standard metric set.
// Every strategy in this package, comparisons included, flows through this
// one function so cross-strategy ratios are computed on identical formulas.
func deriveSummary(initialCapital decimal.Decimal, curve []EquityPoint, transactions []Transaction, riskFreeRate float64) Summary {
	initial, _ := initialCapital.Float64()
	summary := Summary{
		InitialCapital: initial,
		FinalValue:     initial,
		NumTrades:      len(transactions),
	}

	if len(curve) > 0 {
		values := make([]float64, len(curve))
		for i, point := range curve {
			values[i], _ = point.Value.Float64()
		}
		summary.FinalValue = values[len(values)-1]
		if initial > 0 {
			summary.TotalReturn = summary.FinalValue/initial - 1
		}

		start := curve[0].Date
		end := curve[len(curve)-1].Date
		summary.CAGR = metrics.CAGR(summary.FinalValue, initial, start, end)

		returns := metrics.DailyReturns(values)
		summary.Volatility = metrics.Volatility(returns)
		summary.MaxDrawdown, summary.AvgDrawdown = metrics.MaxDrawdown(values)

		dailyMAR := riskFreeRate / metrics.TradingDaysPerYear
		summary.DownsideDeviation = metrics.DownsideDeviation(returns, dailyMAR)

		summary.SharpeRatio = metrics.SharpeRatio(summary.CAGR, summary.Volatility, riskFreeRate)
		summary.SortinoRatio = metrics.SortinoRatio(summary.CAGR, summary.DownsideDeviation, riskFreeRate)
		summary.CalmarRatio = metrics.CalmarRatio(summary.CAGR, summary.MaxDrawdown)
	}

	buyAmount, buyShares := decimal.Zero, decimal.Zero
	sellAmount, sellShares := decimal.Zero, decimal.Zero
	for _, txn := range transactions {
		switch txn.Type {
		case TransactionBuy, TransactionShort:
			summary.TotalBuys++
			buyAmount = buyAmount.Add(txn.Shares.Mul(txn.Price))
			buyShares = buyShares.Add(txn.Shares)
		case TransactionSell, TransactionCover:
			summary.TotalSells++
			sellAmount = sellAmount.Add(txn.Shares.Mul(txn.Price))
			sellShares = sellShares.Add(txn.Shares)
		}
	}
	if buyShares.GreaterThan(decimal.Zero) {
		summary.AvgBuyPrice, _ = buyAmount.Div(buyShares).Float64()
	}
	if sellShares.GreaterThan(decimal.Zero) {
		summary.AvgSellPrice, _ = sellAmount.Div(sellShares).Float64()
	}

	return summary
}
