package backtest

import (
	"fmt"
	"time"

	"github.com/dcagrid/backtester/internal/logger"
	"github.com/dcagrid/backtester/internal/policy"
	"github.com/dcagrid/backtester/internal/risk"
	"github.com/dcagrid/backtester/pkg/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ShortEngine is the short-mode mirror of Engine: entries ladder upward on a
// grid, profit is taken on price decline, and three stop-loss layers force
// covers when the position moves against it. A stop breach is fatal to the
// position, never to the run.
type ShortEngine struct {
	params Params
	eff    Params
	bars   []PriceBar
	log    *logger.Logger
	stops  *risk.Evaluator

	cash              decimal.Decimal
	lots              []Lot // PurchasePrice is the short entry price
	consecutiveShorts int
	lastEntryPrice    *decimal.Decimal
	referencePrice    decimal.Decimal

	trailingEntry *policy.TrailingShortEntry
	trailingCover *policy.TrailingCover

	transactions []Transaction
	equity       []EquityPoint
	warnings     []Warning
}

// NewShortEngine creates a short-mode engine for one run.
func NewShortEngine(params Params, bars []PriceBar) *ShortEngine {
	return &ShortEngine{
		params:       params,
		bars:         bars,
		log:          logger.Component("engine").Mode(string(ModeShortDCA)),
		stops:        risk.NewEvaluator(params.Stops),
		cash:         params.InitialCapital,
		transactions: make([]Transaction, 0),
		equity:       make([]EquityPoint, 0, len(bars)),
	}
}

// Run executes the simulation with the same validation and completion
// guarantees as the long engine.
func (e *ShortEngine) Run() (*Result, error) {
	if err := e.params.Validate(); err != nil {
		return nil, err
	}
	if len(e.bars) < 2 {
		return nil, &ValidationError{Field: "bars", Message: "at least 2 price bars required"}
	}

	e.eff = e.params.Effective()

	for _, bar := range e.bars {
		e.step(bar)
	}

	return &Result{
		Mode:         ModeShortDCA,
		Transactions: e.transactions,
		EquityCurve:  e.equity,
		OpenLots:     e.lots,
		Warnings:     e.warnings,
		Summary:      deriveSummary(e.params.InitialCapital, e.equity, e.transactions, e.params.RiskFreeRate),
	}, nil
}

func (e *ShortEngine) step(bar PriceBar) {
	if !bar.Valid() {
		e.recordDataGap(bar)
		return
	}
	price := bar.Price()

	if e.referencePrice.IsZero() {
		e.referencePrice = price
		e.trailingEntry = policy.NewTrailingShortEntry(e.eff.TrailingBuyActivation, e.eff.TrailingBuyRebound, price)
		e.trailingCover = policy.NewTrailingCover(e.eff.TrailingSellActivation, e.eff.TrailingSellPullback)
	}

	// Stops first, then profit covers, then new entries.
	e.evaluateStops(bar, price)
	e.evaluateCover(bar, price)
	e.evaluateEntry(bar, price)
	e.recordEquity(bar.Date, price)
}

func (e *ShortEngine) recordDataGap(bar PriceBar) {
	e.warnings = append(e.warnings, Warning{
		Date:    bar.Date,
		Kind:    WarnDataGap,
		Message: "missing or malformed price bar, carrying equity forward",
	})
	e.log.DataGap(map[string]any{"date": bar.Date})

	value := e.params.InitialCapital
	if len(e.equity) > 0 {
		value = e.equity[len(e.equity)-1].Value
	}
	e.equity = append(e.equity, EquityPoint{Date: bar.Date, Value: value})
}

func (e *ShortEngine) averageEntry() decimal.Decimal {
	if len(e.lots) == 0 {
		return decimal.Zero
	}
	prices := make([]decimal.Decimal, len(e.lots))
	weights := make([]decimal.Decimal, len(e.lots))
	for i, lot := range e.lots {
		prices[i] = lot.PurchasePrice
		weights[i] = lot.Shares
	}
	return utils.WeightedAverage(prices, weights)
}

// lossFraction is the position's unrealized loss relative to its entry
// exposure, positive when losing (price above average entry), zero otherwise.
func (e *ShortEngine) lossFraction(price decimal.Decimal) decimal.Decimal {
	exposure := decimal.Zero
	pnl := decimal.Zero
	for _, lot := range e.lots {
		exposure = exposure.Add(lot.Shares.Mul(lot.PurchasePrice))
		pnl = pnl.Add(lot.Shares.Mul(lot.PurchasePrice.Sub(price)))
	}
	if exposure.LessThanOrEqual(decimal.Zero) || pnl.GreaterThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return pnl.Neg().Div(exposure)
}

// evaluateStops applies the three stop layers in order of severity:
// portfolio stop covers everything, the cascade unwinds oldest lots, and the
// hard stop covers individual breached lots.
func (e *ShortEngine) evaluateStops(bar PriceBar, price decimal.Decimal) {
	if len(e.lots) == 0 {
		return
	}

	loss := e.lossFraction(price)
	if e.stops.PortfolioBreached(loss) {
		e.cover(bar, price, e.lots, "portfolio_stop", true)
		return
	}

	if n := e.stops.CascadeCount(loss); n > 0 {
		if n > len(e.lots) {
			n = len(e.lots)
		}
		e.cover(bar, price, e.lots[:n], "cascade_stop", true)
	}

	breached := make([]Lot, 0)
	for _, lot := range e.lots {
		if e.stops.LotBreached(lot.PurchasePrice, price) {
			breached = append(breached, lot)
		}
	}
	if len(breached) > 0 {
		e.cover(bar, price, breached, "hard_stop", true)
	}
}

// evaluateCover executes the profit-requirement cover, optionally gated by
// the trailing-cover tracker.
func (e *ShortEngine) evaluateCover(bar PriceBar, price decimal.Decimal) {
	if len(e.lots) == 0 {
		e.trailingCover.Reset()
		return
	}

	if e.eff.EnableTrailingSell {
		if !e.trailingCover.Observe(price, e.averageEntry()) {
			return
		}
		e.trailingCover.Reset()
	}

	// A lot qualifies once the price has declined the profit requirement
	// below its entry; oldest qualifiers cover first.
	threshold := decimal.NewFromInt(1).Sub(e.eff.ProfitRequirement)
	qualifying := make([]Lot, 0, e.eff.MaxLotsToSell)
	for _, lot := range e.lots {
		if len(qualifying) < e.eff.MaxLotsToSell && price.LessThanOrEqual(lot.PurchasePrice.Mul(threshold)) {
			qualifying = append(qualifying, lot)
		}
	}
	if len(qualifying) > 0 {
		e.cover(bar, price, qualifying, "profit_requirement", false)
	}
}

// cover closes the given lots at the bar's price, realizing their PnL into
// cash. Forced covers carry a warning; every cover clears the streak and the
// entry restriction.
func (e *ShortEngine) cover(bar PriceBar, price decimal.Decimal, toCover []Lot, reason string, forced bool) {
	covered := make(map[string]bool, len(toCover))
	shares := decimal.Zero
	pnl := decimal.Zero
	for _, lot := range toCover {
		covered[lot.ID] = true
		shares = shares.Add(lot.Shares)
		pnl = pnl.Add(lot.Shares.Mul(lot.PurchasePrice.Sub(price)))
	}

	remaining := make([]Lot, 0, len(e.lots))
	for _, lot := range e.lots {
		if !covered[lot.ID] {
			remaining = append(remaining, lot)
		}
	}
	e.lots = remaining
	e.cash = e.cash.Add(pnl)

	txn := Transaction{
		ID:               uuid.New().String(),
		Type:             TransactionCover,
		Date:             bar.Date,
		Price:            price,
		Lots:             len(toCover),
		Shares:           shares,
		Amount:           shares.Mul(price),
		ConsecutiveCount: e.consecutiveShorts,
		Reason:           reason,
	}
	e.transactions = append(e.transactions, txn)
	e.log.Transaction(map[string]any{
		"type": "cover", "date": bar.Date, "price": price.String(),
		"lots": len(toCover), "reason": reason,
	})

	if forced {
		e.warnings = append(e.warnings, Warning{
			Date:    bar.Date,
			Kind:    WarnForcedCover,
			Message: fmt.Sprintf("forced cover of %d lot(s): %s", len(toCover), reason),
		})
	}

	e.consecutiveShorts = 0
	e.lastEntryPrice = nil
	e.trailingEntry.Reset(price)
	e.trailingCover.Reset()
}

// evaluateEntry opens at most one new short per bar, mirroring the long
// engine's buy gate: grid spacing up, the last-entry restriction, capacity,
// and the trailing-entry fire when enabled.
func (e *ShortEngine) evaluateEntry(bar PriceBar, price decimal.Decimal) {
	var gridSize decimal.Decimal
	if e.eff.EnableDynamicGrid {
		gridSize = policy.DynamicGridSize(price, e.referencePrice, e.eff.DynamicGridMultiplier, e.eff.NormalizeDynamicReference)
	} else {
		gridSize = policy.ShortGridSize(e.eff.GridInterval, e.eff.ConsecutiveIncrement, e.consecutiveShorts, e.lastEntryPrice, price, e.eff.EnableIncrementalGrid)
	}

	triggered := e.lastEntryPrice == nil ||
		price.GreaterThanOrEqual(e.lastEntryPrice.Mul(decimal.NewFromInt(1).Add(gridSize)))
	allowed := policy.ShortAllowed(e.lastEntryPrice, price)
	hasCapacity := len(e.lots) < e.eff.MaxLots

	fired := true
	if e.eff.EnableTrailingBuy {
		fired = e.trailingEntry.Observe(price)

		if e.trailingEntry.Active() {
			switch {
			case !allowed:
				e.cancelTrailingEntry(bar, "entry restriction: price at or below last entry")
				fired = false
			case !hasCapacity:
				e.cancelTrailingEntry(bar, "max lots held")
				fired = false
			}
		}
	}

	if !triggered || !allowed || !hasCapacity || !fired {
		return
	}

	shares := e.eff.LotSize.Div(price)
	avgBefore := e.averageEntry()
	hadLots := len(e.lots) > 0

	e.lots = append(e.lots, Lot{
		ID:            uuid.New().String(),
		PurchasePrice: price,
		Shares:        shares,
		PurchaseDate:  bar.Date,
	})

	switch {
	case !hadLots:
		e.consecutiveShorts = 0
		p := price
		e.lastEntryPrice = &p
	case price.LessThanOrEqual(avgBefore):
		e.consecutiveShorts = 0
	default:
		e.consecutiveShorts++
		p := price
		e.lastEntryPrice = &p
	}

	if e.eff.EnableTrailingBuy {
		e.trailingEntry.Reset(price)
	}

	txn := Transaction{
		ID:               uuid.New().String(),
		Type:             TransactionShort,
		Date:             bar.Date,
		Price:            price,
		Lots:             1,
		Shares:           shares,
		Amount:           e.eff.LotSize,
		GridSize:         gridSize,
		ConsecutiveCount: e.consecutiveShorts,
	}
	e.transactions = append(e.transactions, txn)
	e.log.Transaction(map[string]any{
		"type": "short", "date": bar.Date, "price": price.String(),
		"grid_size": gridSize.String(), "streak": e.consecutiveShorts,
	})
}

func (e *ShortEngine) cancelTrailingEntry(bar PriceBar, reason string) {
	e.trailingEntry.Cancel()
	e.warnings = append(e.warnings, Warning{
		Date:    bar.Date,
		Kind:    WarnTrailingCancel,
		Message: fmt.Sprintf("trailing short entry canceled: %s", reason),
	})
}

// recordEquity marks the position to market: cash plus the unrealized PnL of
// open shorts.
func (e *ShortEngine) recordEquity(date time.Time, price decimal.Decimal) {
	value := e.cash
	for _, lot := range e.lots {
		value = value.Add(lot.Shares.Mul(lot.PurchasePrice.Sub(price)))
	}
	e.equity = append(e.equity, EquityPoint{Date: date, Value: value})
}
