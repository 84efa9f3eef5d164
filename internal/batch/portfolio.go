package batch

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dcagrid/backtester/internal/backtest"
	"github.com/dcagrid/backtester/internal/provider"
	"github.com/dcagrid/backtester/pkg/utils"
)

// allocationTolerance is how far the allocation sum may drift from 1.
var allocationTolerance = decimal.NewFromFloat(0.001)

// StockAllocation assigns one symbol a fraction of the portfolio's capital.
type StockAllocation struct {
	Symbol     string          `json:"symbol"`
	Allocation decimal.Decimal `json:"allocation"`
}

// PortfolioRequest describes a multi-symbol run. Params is the per-stock
// parameter template; its InitialCapital is the portfolio total and is
// replaced per stock by the allocated slice.
type PortfolioRequest struct {
	Stocks []StockAllocation
	Params backtest.Params
	// BetaCapitalAllocation rescales the given allocations inversely to
	// each stock's beta, so volatile names carry less capital.
	BetaCapitalAllocation bool
}

// StockResult is one symbol's share of a portfolio run.
type StockResult struct {
	Symbol           string           `json:"symbol"`
	Beta             decimal.Decimal  `json:"beta"`
	CapitalAllocated decimal.Decimal  `json:"capitalAllocated"`
	Result           *backtest.Result `json:"result"`
}

// PortfolioResult aggregates the per-stock runs into one equity curve and
// one summary, derived on the same formulas as single runs.
type PortfolioResult struct {
	Stocks      []StockResult          `json:"stockResults"`
	EquityCurve []backtest.EquityPoint `json:"dailyEquityCurve"`
	Summary     backtest.Summary       `json:"summary"`
}

// RunPortfolio executes one backtest per stock and sums the equity curves.
// Any single stock failing fails the portfolio; a partial portfolio curve
// would not be comparable to anything.
func (o *Orchestrator) RunPortfolio(ctx context.Context, betas provider.BetaProvider, req PortfolioRequest) (*PortfolioResult, error) {
	weights, stockBetas, err := resolveWeights(ctx, betas, req)
	if err != nil {
		return nil, err
	}

	out := &PortfolioResult{Stocks: make([]StockResult, 0, len(req.Stocks))}
	curves := make([][]backtest.EquityPoint, 0, len(req.Stocks))

	for i, stock := range req.Stocks {
		capital := utils.RoundDecimal(req.Params.InitialCapital.Mul(weights[i]), 2)

		params := req.Params
		params.InitialCapital = capital
		params.LotSize = utils.ClampDecimal(params.LotSize, decimal.Zero, capital)

		item := o.runItem(ctx, Item{Symbol: stock.Symbol, Params: params})
		if item.Err != nil {
			return nil, item.Err
		}

		out.Stocks = append(out.Stocks, StockResult{
			Symbol:           stock.Symbol,
			Beta:             stockBetas[i],
			CapitalAllocated: capital,
			Result:           item.Result,
		})
		curves = append(curves, item.Result.EquityCurve)
	}

	out.EquityCurve = sumCurves(curves)
	out.Summary = backtest.SummarizeCurve(req.Params.InitialCapital, out.EquityCurve, nil, req.Params.RiskFreeRate)
	return out, nil
}

// resolveWeights validates the allocations and applies the optional
// beta-inverse rescaling. Returned weights sum to 1.
func resolveWeights(ctx context.Context, betas provider.BetaProvider, req PortfolioRequest) ([]decimal.Decimal, []decimal.Decimal, error) {
	if len(req.Stocks) == 0 {
		return nil, nil, &backtest.ValidationError{Field: "stocks", Message: "at least 1 stock required"}
	}

	one := decimal.NewFromInt(1)
	total := decimal.Zero
	for _, stock := range req.Stocks {
		if stock.Allocation.LessThan(decimal.Zero) || stock.Allocation.GreaterThan(one) {
			return nil, nil, &backtest.ValidationError{Field: "allocation", Message: "must be a fraction in [0, 1]"}
		}
		total = total.Add(stock.Allocation)
	}
	if total.Sub(one).Abs().GreaterThan(allocationTolerance) {
		return nil, nil, &backtest.ValidationError{Field: "allocation", Message: "allocations must sum to 1"}
	}

	weights := make([]decimal.Decimal, len(req.Stocks))
	stockBetas := make([]decimal.Decimal, len(req.Stocks))
	for i, stock := range req.Stocks {
		stockBetas[i] = one
		if betas != nil {
			stockBetas[i] = betas.Beta(ctx, stock.Symbol)
		}
		weights[i] = stock.Allocation
	}

	if req.BetaCapitalAllocation {
		scaled := make([]decimal.Decimal, len(weights))
		sum := decimal.Zero
		for i := range weights {
			scaled[i] = weights[i].Div(stockBetas[i])
			sum = sum.Add(scaled[i])
		}
		if sum.GreaterThan(decimal.Zero) {
			for i := range scaled {
				weights[i] = scaled[i].Div(sum)
			}
		}
	}
	return weights, stockBetas, nil
}

// sumCurves adds per-stock curves date by date. Dates are unioned; a curve
// that has no point on a date contributes its most recent value, so a gap in
// one symbol never dents the portfolio. Before a curve's first point it
// contributes nothing.
func sumCurves(curves [][]backtest.EquityPoint) []backtest.EquityPoint {
	dateSet := make(map[int64]time.Time)
	for _, curve := range curves {
		for _, point := range curve {
			day := point.Date.Truncate(24 * time.Hour)
			dateSet[day.Unix()] = day
		}
	}
	if len(dateSet) == 0 {
		return nil
	}

	dates := make([]time.Time, 0, len(dateSet))
	for _, date := range dateSet {
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	cursors := make([]int, len(curves))
	lastValues := make([]decimal.Decimal, len(curves))

	total := make([]backtest.EquityPoint, 0, len(dates))
	for _, date := range dates {
		value := decimal.Zero
		for i, curve := range curves {
			for cursors[i] < len(curve) && !curve[cursors[i]].Date.Truncate(24*time.Hour).After(date) {
				lastValues[i] = curve[cursors[i]].Value
				cursors[i]++
			}
			value = value.Add(lastValues[i])
		}
		total = append(total, backtest.EquityPoint{Date: date, Value: value})
	}
	return total
}
