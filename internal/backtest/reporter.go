package backtest

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Reporter renders backtest results for the CLI. This is the only place in
// the module where fractions become human-readable percentages.
type Reporter struct{}

// NewReporter creates a new reporter.
func NewReporter() *Reporter {
	return &Reporter{}
}

func pct(fraction float64) string {
	return fmt.Sprintf("%.2f%%", fraction*100)
}

// GenerateReport generates a formatted text report.
func (r *Reporter) GenerateReport(result *Result) string {
	var sb strings.Builder
	s := result.Summary

	sb.WriteString("═══════════════════════════════════════════════════════\n")
	sb.WriteString("            BACKTEST PERFORMANCE REPORT\n")
	sb.WriteString("═══════════════════════════════════════════════════════\n\n")

	sb.WriteString(fmt.Sprintf("Mode:                 %s\n", result.Mode))
	if result.Symbol != "" {
		sb.WriteString(fmt.Sprintf("Symbol:               %s\n", result.Symbol))
	}
	sb.WriteString("\n📊 PERFORMANCE\n")
	sb.WriteString("───────────────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("Initial Capital:      $%.2f\n", s.InitialCapital))
	sb.WriteString(fmt.Sprintf("Final Value:          $%.2f\n", s.FinalValue))
	sb.WriteString(fmt.Sprintf("Total Return:         %s\n", pct(s.TotalReturn)))
	sb.WriteString(fmt.Sprintf("CAGR:                 %s\n", pct(s.CAGR)))
	sb.WriteString(fmt.Sprintf("Max Drawdown:         %s\n", pct(s.MaxDrawdown)))
	sb.WriteString(fmt.Sprintf("Avg Drawdown:         %s\n", pct(s.AvgDrawdown)))
	sb.WriteString(fmt.Sprintf("Volatility:           %s\n", pct(s.Volatility)))
	sb.WriteString(fmt.Sprintf("Sharpe Ratio:         %.3f\n", s.SharpeRatio))
	sb.WriteString(fmt.Sprintf("Sortino Ratio:        %.3f\n", s.SortinoRatio))
	sb.WriteString(fmt.Sprintf("Calmar Ratio:         %.3f\n\n", s.CalmarRatio))

	sb.WriteString("📈 TRADES\n")
	sb.WriteString("───────────────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("Total Transactions:   %d\n", s.NumTrades))
	sb.WriteString(fmt.Sprintf("Buys:                 %d\n", s.TotalBuys))
	sb.WriteString(fmt.Sprintf("Sells:                %d\n", s.TotalSells))
	if s.AvgBuyPrice > 0 {
		sb.WriteString(fmt.Sprintf("Avg Buy Price:        $%.2f\n", s.AvgBuyPrice))
	}
	if s.AvgSellPrice > 0 {
		sb.WriteString(fmt.Sprintf("Avg Sell Price:       $%.2f\n", s.AvgSellPrice))
	}
	sb.WriteString(fmt.Sprintf("Open Lots at End:     %d\n\n", len(result.OpenLots)))

	if len(result.Transactions) > 0 {
		sb.WriteString("📋 RECENT TRANSACTIONS (Last 10)\n")
		sb.WriteString("───────────────────────────────────────────────────────\n")

		start := len(result.Transactions) - 10
		if start < 0 {
			start = 0
		}
		for i := start; i < len(result.Transactions); i++ {
			txn := result.Transactions[i]
			line := fmt.Sprintf("%s  %-5s $%s x%d",
				txn.Date.Format("2006-01-02"),
				txn.Type,
				txn.Price.StringFixed(2),
				txn.Lots,
			)
			if !txn.GridSize.IsZero() {
				line += fmt.Sprintf("  grid=%s", pctDecimal(txn.GridSize))
			}
			if txn.Reason != "" {
				line += fmt.Sprintf("  (%s)", txn.Reason)
			}
			sb.WriteString(line + "\n")
		}
		sb.WriteString("\n")
	}

	if len(result.Warnings) > 0 {
		sb.WriteString(fmt.Sprintf("⚠️  %d warning(s) during run\n\n", len(result.Warnings)))
	}

	sb.WriteString("═══════════════════════════════════════════════════════\n")
	return sb.String()
}

// GenerateSummary generates a one-line summary.
func (r *Reporter) GenerateSummary(result *Result) string {
	s := result.Summary
	return fmt.Sprintf(
		"Return: %s | CAGR: %s | Trades: %d | Max DD: %s | Sharpe: %.2f",
		pct(s.TotalReturn), pct(s.CAGR), s.NumTrades, pct(s.MaxDrawdown), s.SharpeRatio,
	)
}

func pctDecimal(d decimal.Decimal) string {
	return pct(d.InexactFloat64())
}
