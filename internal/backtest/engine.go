package backtest

import (
	"fmt"
	"time"

	"github.com/dcagrid/backtester/internal/logger"
	"github.com/dcagrid/backtester/internal/policy"
	"github.com/dcagrid/backtester/pkg/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Engine drives the long-mode day-by-day simulation. State is created per
// run, mutated across the price series, and discarded once the summary is
// derived; nothing is shared between invocations.
type Engine struct {
	params Params // as supplied
	eff    Params // beta-scaled, derived once
	bars   []PriceBar
	log    *logger.Logger

	cash            decimal.Decimal
	lots            []Lot
	consecutiveBuys int
	lastBuyPrice    *decimal.Decimal
	referencePrice  decimal.Decimal

	trailingBuy  *policy.TrailingBuy
	trailingSell *policy.TrailingSell

	transactions []Transaction
	equity       []EquityPoint
	warnings     []Warning
}

// NewEngine creates a long-mode engine for one run.
func NewEngine(params Params, bars []PriceBar) *Engine {
	return &Engine{
		params:       params,
		bars:         bars,
		log:          logger.Component("engine").Mode(string(params.Mode)),
		cash:         params.InitialCapital,
		transactions: make([]Transaction, 0),
		equity:       make([]EquityPoint, 0, len(bars)),
	}
}

// Run executes the simulation. Parameters are validated before any step
// runs; after that the run always completes, downgrading bad bars to
// warnings.
func (e *Engine) Run() (*Result, error) {
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

	result := &Result{
		Mode:         e.params.Mode,
		Transactions: e.transactions,
		EquityCurve:  e.equity,
		OpenLots:     e.lots,
		Warnings:     e.warnings,
		Summary:      deriveSummary(e.params.InitialCapital, e.equity, e.transactions, e.params.RiskFreeRate),
	}
	return result, nil
}

// step advances the simulation by one bar: sells are evaluated and executed
// before buys, then the day's mark-to-market value is appended.
func (e *Engine) step(bar PriceBar) {
	if !bar.Valid() {
		e.recordDataGap(bar)
		return
	}
	price := bar.Price()

	if e.referencePrice.IsZero() {
		e.referencePrice = price
		e.trailingBuy = policy.NewTrailingBuy(e.eff.TrailingBuyActivation, e.eff.TrailingBuyRebound, price)
		e.trailingSell = policy.NewTrailingSell(e.eff.TrailingSellActivation, e.eff.TrailingSellPullback)
	}

	e.evaluateSell(bar, price)
	e.evaluateBuy(bar, price)
	e.recordEquity(bar.Date, price)
}

// recordDataGap logs a skipped bar and carries the previous equity value
// forward so the curve keeps one point per day.
func (e *Engine) recordDataGap(bar PriceBar) {
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

func (e *Engine) averageCost() decimal.Decimal {
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

// evaluateSell executes the profit-requirement sell, optionally gated by the
// trailing-sell tracker. A sell clears the buy streak and the last-buy-price
// restriction.
func (e *Engine) evaluateSell(bar PriceBar, price decimal.Decimal) {
	if len(e.lots) == 0 {
		e.trailingSell.Reset()
		return
	}

	avgCost := e.averageCost()
	if e.eff.EnableTrailingSell {
		if !e.trailingSell.Observe(price, avgCost) {
			return
		}
		e.trailingSell.Reset()
	}

	// Qualifying lots meet the profit requirement against their own
	// purchase price; among qualifiers the oldest sell first.
	threshold := decimal.NewFromInt(1).Add(e.eff.ProfitRequirement)
	sold := make([]Lot, 0, e.eff.MaxLotsToSell)
	remaining := make([]Lot, 0, len(e.lots))
	for _, lot := range e.lots {
		if len(sold) < e.eff.MaxLotsToSell && price.GreaterThanOrEqual(lot.PurchasePrice.Mul(threshold)) {
			sold = append(sold, lot)
		} else {
			remaining = append(remaining, lot)
		}
	}
	if len(sold) == 0 {
		return
	}

	shares := decimal.Zero
	for _, lot := range sold {
		shares = shares.Add(lot.Shares)
	}
	proceeds := shares.Mul(price)

	e.lots = remaining
	e.cash = e.cash.Add(proceeds)

	txn := Transaction{
		ID:               uuid.New().String(),
		Type:             TransactionSell,
		Date:             bar.Date,
		Price:            price,
		Lots:             len(sold),
		Shares:           shares,
		Amount:           proceeds,
		ConsecutiveCount: e.consecutiveBuys,
		Reason:           "profit_requirement",
	}
	e.transactions = append(e.transactions, txn)
	e.log.Transaction(map[string]any{
		"type": "sell", "date": bar.Date, "price": price.String(), "lots": len(sold),
	})

	// Post-sell resets: streak cleared, restriction lifted, trailing
	// trackers re-seeded at the sell price.
	e.consecutiveBuys = 0
	e.lastBuyPrice = nil
	e.trailingBuy.Reset(price)
	e.trailingSell.Reset()
}

// evaluateBuy executes at most one buy per bar: grid spacing, the
// last-buy-price restriction, open capacity, available cash, and (when
// enabled) the trailing-buy fire must all hold.
func (e *Engine) evaluateBuy(bar PriceBar, price decimal.Decimal) {
	var gridSize decimal.Decimal
	if e.eff.EnableDynamicGrid {
		gridSize = policy.DynamicGridSize(price, e.referencePrice, e.eff.DynamicGridMultiplier, e.eff.NormalizeDynamicReference)
	} else {
		gridSize = policy.GridSize(e.eff.GridInterval, e.eff.ConsecutiveIncrement, e.consecutiveBuys, e.lastBuyPrice, price, e.eff.EnableIncrementalGrid)
	}

	triggered := e.lastBuyPrice == nil ||
		price.LessThanOrEqual(e.lastBuyPrice.Mul(decimal.NewFromInt(1).Sub(gridSize)))
	allowed := policy.BuyAllowed(e.lastBuyPrice, price)
	hasCapacity := len(e.lots) < e.eff.MaxLots

	fired := true
	if e.eff.EnableTrailingBuy {
		fired = e.trailingBuy.Observe(price)

		// A blocked or capacity-starved pending order is canceled, not
		// merely skipped.
		if e.trailingBuy.Active() {
			switch {
			case !allowed:
				e.cancelTrailingBuy(bar, "buy restriction: price at or above last buy")
				fired = false
			case !hasCapacity:
				e.cancelTrailingBuy(bar, "max lots held")
				fired = false
			}
		}
	}

	if !triggered || !allowed || !hasCapacity || !fired {
		return
	}
	if e.cash.LessThan(e.eff.LotSize) {
		return
	}

	shares := e.eff.LotSize.Div(price)
	avgBefore := e.averageCost()
	hadLots := len(e.lots) > 0

	e.cash = e.cash.Sub(e.eff.LotSize)
	e.lots = append(e.lots, Lot{
		ID:            uuid.New().String(),
		PurchasePrice: price,
		Shares:        shares,
		PurchaseDate:  bar.Date,
	})

	// Streak accounting: a buy below the prior average cost extends the
	// streak and moves the restriction down; a buy at or above it clears
	// the streak but keeps the restriction where it was. The first buy of
	// a cycle starts with no streak.
	switch {
	case !hadLots:
		e.consecutiveBuys = 0
		p := price
		e.lastBuyPrice = &p
	case price.GreaterThanOrEqual(avgBefore):
		e.consecutiveBuys = 0
	default:
		e.consecutiveBuys++
		p := price
		e.lastBuyPrice = &p
	}

	// A fired trailing order is spent; the next buy needs a fresh
	// activation cycle.
	if e.eff.EnableTrailingBuy {
		e.trailingBuy.Reset(price)
	}

	txn := Transaction{
		ID:               uuid.New().String(),
		Type:             TransactionBuy,
		Date:             bar.Date,
		Price:            price,
		Lots:             1,
		Shares:           shares,
		Amount:           e.eff.LotSize,
		GridSize:         gridSize,
		ConsecutiveCount: e.consecutiveBuys,
	}
	e.transactions = append(e.transactions, txn)
	e.log.Transaction(map[string]any{
		"type": "buy", "date": bar.Date, "price": price.String(),
		"grid_size": gridSize.String(), "streak": e.consecutiveBuys,
	})
}

func (e *Engine) cancelTrailingBuy(bar PriceBar, reason string) {
	e.trailingBuy.Cancel()
	e.warnings = append(e.warnings, Warning{
		Date:    bar.Date,
		Kind:    WarnTrailingCancel,
		Message: fmt.Sprintf("trailing buy canceled: %s", reason),
	})
}

// recordEquity appends the day's mark-to-market value: cash plus open lots
// at the current price.
func (e *Engine) recordEquity(date time.Time, price decimal.Decimal) {
	value := e.cash
	for _, lot := range e.lots {
		value = value.Add(lot.Shares.Mul(price))
	}
	e.equity = append(e.equity, EquityPoint{Date: date, Value: value})
}
