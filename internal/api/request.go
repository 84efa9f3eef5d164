package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dcagrid/backtester/internal/backtest"
	"github.com/dcagrid/backtester/internal/batch"
	"github.com/dcagrid/backtester/internal/risk"
)

// backtestRequest is the JSON body of the single-run endpoints. All rate-like
// fields are decimal fractions; zero values fall back to the engine defaults.
type backtestRequest struct {
	Symbol    string `json:"symbol" binding:"required"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`

	InitialCapital decimal.Decimal `json:"initialCapital"`
	LotSize        decimal.Decimal `json:"lotSize"`
	MaxLots        int             `json:"maxLots"`
	MaxLotsToSell  int             `json:"maxLotsToSell"`

	GridSpacing  decimal.Decimal `json:"gridSpacing"`
	ProfitTarget decimal.Decimal `json:"profitTarget"`

	EnableTrailingBuy     bool            `json:"enableTrailingStopBuy"`
	TrailingBuyActivation decimal.Decimal `json:"trailingBuyActivation"`
	TrailingBuyRebound    decimal.Decimal `json:"trailingBuyRebound"`

	EnableTrailingSell     bool            `json:"enableTrailingStopSell"`
	TrailingSellActivation decimal.Decimal `json:"trailingSellActivation"`
	TrailingSellPullback   decimal.Decimal `json:"trailingSellPullback"`

	EnableIncrementalGrid bool            `json:"enableIncrementalGrid"`
	ConsecutiveIncrement  decimal.Decimal `json:"consecutiveIncrement"`

	EnableDynamicGrid         bool            `json:"enableDynamicGrid"`
	DynamicGridMultiplier     decimal.Decimal `json:"dynamicGridMultiplier"`
	NormalizeDynamicReference bool            `json:"normalizeDynamicReference"`

	EnableBetaScaling bool            `json:"enableBetaScaling"`
	Beta              decimal.Decimal `json:"beta"`
	BetaCoefficient   decimal.Decimal `json:"betaCoefficient"`

	RiskFreeRate float64 `json:"riskFreeRate"`

	// Short-mode stop layers; ignored by the long endpoints.
	EnableHardStop    bool            `json:"enableHardStopLoss"`
	HardStop          decimal.Decimal `json:"hardStopLoss"`
	EnablePortfolio   bool            `json:"enablePortfolioStopLoss"`
	PortfolioStop     decimal.Decimal `json:"portfolioStopLoss"`
	EnableCascadeStop bool            `json:"enableCascadeStopLoss"`
	CascadeThreshold  decimal.Decimal `json:"cascadeThreshold"`
	CascadeStep       decimal.Decimal `json:"cascadeStep"`

	IncludeComparison bool `json:"includeComparison"`
}

// toParams maps the request onto engine parameters, keeping defaults where
// the body left a field zero.
func (r *backtestRequest) toParams(mode backtest.Mode) backtest.Params {
	params := backtest.DefaultParams()
	params.Mode = mode

	if r.InitialCapital.GreaterThan(decimal.Zero) {
		params.InitialCapital = r.InitialCapital
	}
	if r.LotSize.GreaterThan(decimal.Zero) {
		params.LotSize = r.LotSize
	}
	if r.MaxLots > 0 {
		params.MaxLots = r.MaxLots
	}
	if r.MaxLotsToSell > 0 {
		params.MaxLotsToSell = r.MaxLotsToSell
	}
	if r.GridSpacing.GreaterThan(decimal.Zero) {
		params.GridInterval = r.GridSpacing
	}
	if r.ProfitTarget.GreaterThan(decimal.Zero) {
		params.ProfitRequirement = r.ProfitTarget
	}
	if r.RiskFreeRate > 0 {
		params.RiskFreeRate = r.RiskFreeRate
	}

	params.EnableTrailingBuy = r.EnableTrailingBuy
	if r.TrailingBuyActivation.GreaterThan(decimal.Zero) {
		params.TrailingBuyActivation = r.TrailingBuyActivation
	}
	if r.TrailingBuyRebound.GreaterThan(decimal.Zero) {
		params.TrailingBuyRebound = r.TrailingBuyRebound
	}
	params.EnableTrailingSell = r.EnableTrailingSell
	if r.TrailingSellActivation.GreaterThan(decimal.Zero) {
		params.TrailingSellActivation = r.TrailingSellActivation
	}
	if r.TrailingSellPullback.GreaterThan(decimal.Zero) {
		params.TrailingSellPullback = r.TrailingSellPullback
	}

	params.EnableIncrementalGrid = r.EnableIncrementalGrid
	if r.ConsecutiveIncrement.GreaterThan(decimal.Zero) {
		params.ConsecutiveIncrement = r.ConsecutiveIncrement
	}
	params.EnableDynamicGrid = r.EnableDynamicGrid
	if r.DynamicGridMultiplier.GreaterThan(decimal.Zero) {
		params.DynamicGridMultiplier = r.DynamicGridMultiplier
	}
	params.NormalizeDynamicReference = r.NormalizeDynamicReference

	params.EnableBetaScaling = r.EnableBetaScaling
	params.Beta = r.Beta
	params.BetaCoefficient = r.BetaCoefficient

	if mode == backtest.ModeShortDCA {
		stops := risk.DefaultStopConfig()
		stops.EnableHardStop = r.EnableHardStop
		if r.HardStop.GreaterThan(decimal.Zero) {
			stops.HardStop = r.HardStop
		}
		stops.EnablePortfolioStop = r.EnablePortfolio
		if r.PortfolioStop.GreaterThan(decimal.Zero) {
			stops.PortfolioStop = r.PortfolioStop
		}
		stops.EnableCascadeStop = r.EnableCascadeStop
		if r.CascadeThreshold.GreaterThan(decimal.Zero) {
			stops.CascadeThreshold = r.CascadeThreshold
		}
		if r.CascadeStep.GreaterThan(decimal.Zero) {
			stops.CascadeStep = r.CascadeStep
		}
		params.Stops = stops
	}

	return params
}

// dateRange parses the optional start and end dates.
func (r *backtestRequest) dateRange() (start, end time.Time, err error) {
	if r.StartDate != "" {
		start, err = time.Parse("2006-01-02", r.StartDate)
		if err != nil {
			return start, end, &backtest.ValidationError{Field: "startDate", Message: "must be YYYY-MM-DD"}
		}
	}
	if r.EndDate != "" {
		end, err = time.Parse("2006-01-02", r.EndDate)
		if err != nil {
			return start, end, &backtest.ValidationError{Field: "endDate", Message: "must be YYYY-MM-DD"}
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, &backtest.ValidationError{Field: "endDate", Message: "must not precede startDate"}
	}
	return start, end, nil
}

// filterBars keeps the bars inside the inclusive [start, end] window. Zero
// bounds are open.
func filterBars(bars []backtest.PriceBar, start, end time.Time) []backtest.PriceBar {
	if start.IsZero() && end.IsZero() {
		return bars
	}
	out := make([]backtest.PriceBar, 0, len(bars))
	for _, bar := range bars {
		if !start.IsZero() && bar.Date.Before(start) {
			continue
		}
		if !end.IsZero() && bar.Date.After(end) {
			continue
		}
		out = append(out, bar)
	}
	return out
}

// batchRequest is the JSON body of the batch endpoints.
type batchRequest struct {
	backtestRequest
	ParameterGrid struct {
		GridSpacing  []decimal.Decimal `json:"gridSpacing"`
		ProfitTarget []decimal.Decimal `json:"profitTarget"`
	} `json:"parameterGrid" binding:"required"`
}

func (r *batchRequest) items() ([]batch.Item, error) {
	if len(r.ParameterGrid.GridSpacing) == 0 || len(r.ParameterGrid.ProfitTarget) == 0 {
		return nil, &backtest.ValidationError{Field: "parameterGrid", Message: "gridSpacing and profitTarget must be non-empty"}
	}
	base := r.toParams(backtest.ModeDCA)
	return batch.Expand(r.Symbol, base, r.ParameterGrid.GridSpacing, r.ParameterGrid.ProfitTarget), nil
}

// portfolioRequest is the JSON body of the portfolio endpoint.
type portfolioRequest struct {
	Stocks []batch.StockAllocation `json:"stocks" binding:"required"`

	InitialCapital              decimal.Decimal `json:"initialCapital"`
	GridSpacing                 decimal.Decimal `json:"gridSpacing"`
	ProfitTarget                decimal.Decimal `json:"profitTarget"`
	EnableBetaCapitalAllocation bool            `json:"enableBetaCapitalAllocation"`
	RiskFreeRate                float64         `json:"riskFreeRate"`
}

func (r *portfolioRequest) toBatchRequest() batch.PortfolioRequest {
	params := backtest.DefaultParams()
	if r.InitialCapital.GreaterThan(decimal.Zero) {
		params.InitialCapital = r.InitialCapital
	}
	if r.GridSpacing.GreaterThan(decimal.Zero) {
		params.GridInterval = r.GridSpacing
	}
	if r.ProfitTarget.GreaterThan(decimal.Zero) {
		params.ProfitRequirement = r.ProfitTarget
	}
	if r.RiskFreeRate > 0 {
		params.RiskFreeRate = r.RiskFreeRate
	}
	return batch.PortfolioRequest{
		Stocks:                r.Stocks,
		Params:                params,
		BetaCapitalAllocation: r.EnableBetaCapitalAllocation,
	}
}
