package backtest

import (
	"time"

	"github.com/shopspring/decimal"
)

// Mode selects the simulation direction.
type Mode string

const (
	ModeDCA      Mode = "dca"
	ModeShortDCA Mode = "short-dca"

	// Comparison strategies share the result shape
	ModeBuyHold   Mode = "buy-hold"
	ModeShortHold Mode = "short-hold"
)

// PriceBar is one trading day of externally sourced price data. Bars are
// ordered ascending by date with no duplicates; only Date and AdjClose are
// required.
type PriceBar struct {
	Date     time.Time       `json:"date"`
	Open     decimal.Decimal `json:"open,omitempty"`
	High     decimal.Decimal `json:"high,omitempty"`
	Low      decimal.Decimal `json:"low,omitempty"`
	Close    decimal.Decimal `json:"close"`
	AdjClose decimal.Decimal `json:"adjustedClose"`
	Volume   decimal.Decimal `json:"volume,omitempty"`
}

// Price returns the price used by the simulation: the adjusted close, falling
// back to the raw close when no adjusted value is present.
func (b PriceBar) Price() decimal.Decimal {
	if b.AdjClose.GreaterThan(decimal.Zero) {
		return b.AdjClose
	}
	return b.Close
}

// Valid reports whether the bar carries enough data to simulate the day.
func (b PriceBar) Valid() bool {
	return !b.Date.IsZero() && b.Price().GreaterThan(decimal.Zero)
}

// Lot is one purchased unit. For shorts the purchase price is the entry
// (sale) price.
type Lot struct {
	ID            string          `json:"id"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	Shares        decimal.Decimal `json:"shares"`
	PurchaseDate  time.Time       `json:"purchaseDate"`
}

// TransactionType labels entries in the transaction log.
type TransactionType string

const (
	TransactionBuy   TransactionType = "buy"
	TransactionSell  TransactionType = "sell"
	TransactionShort TransactionType = "short"
	TransactionCover TransactionType = "cover"
)

// Transaction is one executed trade.
type Transaction struct {
	ID               string          `json:"id"`
	Type             TransactionType `json:"type"`
	Date             time.Time       `json:"date"`
	Price            decimal.Decimal `json:"price"`
	Lots             int             `json:"lotsAffected"`
	Shares           decimal.Decimal `json:"shares"`
	Amount           decimal.Decimal `json:"amount"`
	GridSize         decimal.Decimal `json:"gridSizeUsed"`
	ConsecutiveCount int             `json:"consecutiveCountAtExecution"`
	Reason           string          `json:"reason,omitempty"`
}

// EquityPoint is one day of mark-to-market portfolio value.
type EquityPoint struct {
	Date  time.Time       `json:"date"`
	Value decimal.Decimal `json:"value"`
}

// WarningKind classifies recoverable conditions surfaced on the result.
type WarningKind string

const (
	WarnDataGap        WarningKind = "data_gap"
	WarnTrailingCancel WarningKind = "trailing_cancel"
	WarnForcedCover    WarningKind = "forced_cover"
)

// Warning is a non-fatal condition observed during a run.
type Warning struct {
	Date    time.Time   `json:"date"`
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}

// Summary holds the derived performance metrics for a run. All
// percentage-like fields are decimal fractions, never raw percentages.
type Summary struct {
	InitialCapital    float64 `json:"initialCapital"`
	FinalValue        float64 `json:"finalValue"`
	TotalReturn       float64 `json:"totalReturn"`
	CAGR              float64 `json:"cagr"`
	Volatility        float64 `json:"volatility"`
	MaxDrawdown       float64 `json:"maxDrawdown"`
	AvgDrawdown       float64 `json:"avgDrawdown"`
	DownsideDeviation float64 `json:"downsideDeviation"`
	SharpeRatio       float64 `json:"sharpeRatio"`
	SortinoRatio      float64 `json:"sortinoRatio"`
	CalmarRatio       float64 `json:"calmarRatio"`
	NumTrades         int     `json:"numTrades"`
	TotalBuys         int     `json:"totalBuys"`
	TotalSells        int     `json:"totalSells"`
	AvgBuyPrice       float64 `json:"avgBuyPrice"`
	AvgSellPrice      float64 `json:"avgSellPrice"`
}

// Result is the full output of one simulation run.
type Result struct {
	Symbol       string        `json:"symbol,omitempty"`
	Mode         Mode          `json:"mode"`
	Transactions []Transaction `json:"transactions"`
	EquityCurve  []EquityPoint `json:"dailyEquityCurve"`
	OpenLots     []Lot         `json:"finalOpenLots"`
	Summary      Summary       `json:"summary"`
	Warnings     []Warning     `json:"warnings,omitempty"`
}
