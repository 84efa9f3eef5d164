package backtest

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BuyAndHold invests the full initial capital at the first valid bar and
// marks to market through the same series. Its summary flows through the
// identical metric derivation as the main engine, so cross-strategy ratios
// compare like with like.
func BuyAndHold(initialCapital decimal.Decimal, bars []PriceBar, riskFreeRate float64) (*Result, error) {
	return holdStrategy(ModeBuyHold, initialCapital, bars, riskFreeRate)
}

// ShortAndHold mirrors BuyAndHold for a short position opened at the first
// valid bar: profit is shares x (startPrice - currentPrice).
func ShortAndHold(initialCapital decimal.Decimal, bars []PriceBar, riskFreeRate float64) (*Result, error) {
	return holdStrategy(ModeShortHold, initialCapital, bars, riskFreeRate)
}

func holdStrategy(mode Mode, initialCapital decimal.Decimal, bars []PriceBar, riskFreeRate float64) (*Result, error) {
	if initialCapital.LessThanOrEqual(decimal.Zero) {
		return nil, &ValidationError{Field: "initialCapital", Message: "must be positive"}
	}
	if len(bars) < 2 {
		return nil, &ValidationError{Field: "bars", Message: "at least 2 price bars required"}
	}

	var (
		entryPrice   decimal.Decimal
		entryDate    time.Time
		shares       decimal.Decimal
		transactions []Transaction
		warnings     []Warning
	)
	curve := make([]EquityPoint, 0, len(bars))

	for _, bar := range bars {
		if !bar.Valid() {
			value := initialCapital
			if len(curve) > 0 {
				value = curve[len(curve)-1].Value
			}
			warnings = append(warnings, Warning{
				Date:    bar.Date,
				Kind:    WarnDataGap,
				Message: "missing or malformed price bar, carrying equity forward",
			})
			curve = append(curve, EquityPoint{Date: bar.Date, Value: value})
			continue
		}

		price := bar.Price()
		if shares.IsZero() {
			entryPrice = price
			entryDate = bar.Date
			shares = initialCapital.Div(price)

			txnType := TransactionBuy
			if mode == ModeShortHold {
				txnType = TransactionShort
			}
			transactions = append(transactions, Transaction{
				ID:     uuid.New().String(),
				Type:   txnType,
				Date:   bar.Date,
				Price:  price,
				Lots:   1,
				Shares: shares,
				Amount: initialCapital,
			})
		}

		var value decimal.Decimal
		if mode == ModeShortHold {
			value = initialCapital.Add(shares.Mul(entryPrice.Sub(price)))
		} else {
			value = shares.Mul(price)
		}
		curve = append(curve, EquityPoint{Date: bar.Date, Value: value})
	}

	if shares.IsZero() {
		return nil, &ValidationError{Field: "bars", Message: "no valid price bars in range"}
	}

	result := &Result{
		Mode:         mode,
		Transactions: transactions,
		EquityCurve:  curve,
		Warnings:     warnings,
		Summary:      deriveSummary(initialCapital, curve, transactions, riskFreeRate),
	}
	if mode != ModeShortHold {
		result.OpenLots = []Lot{{
			ID:            transactions[0].ID,
			PurchasePrice: entryPrice,
			Shares:        shares,
			PurchaseDate:  entryDate,
		}}
	}
	return result, nil
}
