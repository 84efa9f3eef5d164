package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dcagrid/backtester/internal/backtest"
	"github.com/dcagrid/backtester/internal/risk"
)

var (
	dataFile       = flag.String("data", "", "Path to CSV file with daily price history (required)")
	symbol         = flag.String("symbol", "AAPL", "Stock ticker")
	mode           = flag.String("mode", "dca", "Strategy mode: dca or short-dca")
	initialCapital = flag.Float64("capital", 10000, "Initial capital")
	lotSize        = flag.Float64("lot-size", 1000, "Capital per lot")
	maxLots        = flag.Int("max-lots", 10, "Maximum open lots")
	maxLotsToSell  = flag.Int("max-lots-to-sell", 1, "Maximum lots sold per day")
	gridSpacing    = flag.Float64("grid", 0.10, "Grid spacing as a fraction (0.10 for 10%)")
	profitTarget   = flag.Float64("profit", 0.05, "Profit requirement as a fraction")
	riskFreeRate   = flag.Float64("rf", 0.04, "Annual risk-free rate as a fraction")

	// Grid modifiers
	incremental   = flag.Bool("incremental", false, "Widen the grid per consecutive buy")
	increment     = flag.Float64("increment", 0.05, "Grid widening per consecutive buy")
	dynamicGrid   = flag.Bool("dynamic", false, "Square-root dynamic grid spacing")
	dynamicMult   = flag.Float64("dynamic-mult", 1.0, "Dynamic grid multiplier")
	betaScaling   = flag.Bool("beta-scaling", false, "Scale percentage parameters by beta")
	beta          = flag.Float64("beta", 1.0, "Beta coefficient for scaling")
	hardStop      = flag.Float64("hard-stop", 0.25, "Short mode: per-lot hard stop fraction")
	portfolioStop = flag.Float64("portfolio-stop", 0.30, "Short mode: portfolio stop fraction")

	// Output options
	compare        = flag.Bool("compare", false, "Also run the matching hold strategy")
	generateSample = flag.Bool("generate-sample", false, "Generate sample data instead of loading from file")
	sampleDays     = flag.Int("sample-days", 500, "Number of days to generate for sample data")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	loader := backtest.NewDataLoader()

	var bars []backtest.PriceBar
	if *generateSample {
		log.Println("📊 Generating sample data...")
		bars = loader.GenerateSampleData(time.Now().AddDate(0, 0, -*sampleDays), *sampleDays, 100)
		log.Printf("✓ Generated %d bars\n", len(bars))
	} else {
		if *dataFile == "" {
			return fmt.Errorf("either -data flag or -generate-sample flag is required")
		}
		log.Printf("📂 Loading data from %s...\n", *dataFile)
		var err error
		bars, err = loader.LoadFromCSV(*dataFile)
		if err != nil {
			return fmt.Errorf("failed to load data: %w", err)
		}
		log.Printf("✓ Loaded %d bars\n", len(bars))
	}

	if len(bars) == 0 {
		return fmt.Errorf("no data loaded")
	}
	log.Printf("📅 Period: %s to %s\n",
		bars[0].Date.Format("2006-01-02"),
		bars[len(bars)-1].Date.Format("2006-01-02"))

	params := backtest.DefaultParams()
	params.Mode = backtest.Mode(*mode)
	params.InitialCapital = decimal.NewFromFloat(*initialCapital)
	params.LotSize = decimal.NewFromFloat(*lotSize)
	params.MaxLots = *maxLots
	params.MaxLotsToSell = *maxLotsToSell
	params.GridInterval = decimal.NewFromFloat(*gridSpacing)
	params.ProfitRequirement = decimal.NewFromFloat(*profitTarget)
	params.RiskFreeRate = *riskFreeRate
	params.EnableIncrementalGrid = *incremental
	params.ConsecutiveIncrement = decimal.NewFromFloat(*increment)
	params.EnableDynamicGrid = *dynamicGrid
	params.DynamicGridMultiplier = decimal.NewFromFloat(*dynamicMult)
	params.EnableBetaScaling = *betaScaling
	params.Beta = decimal.NewFromFloat(*beta)

	if params.Mode == backtest.ModeShortDCA {
		stops := risk.DefaultStopConfig()
		stops.HardStop = decimal.NewFromFloat(*hardStop)
		stops.PortfolioStop = decimal.NewFromFloat(*portfolioStop)
		params.Stops = stops
	}

	log.Println("\n⚙️  Backtest Configuration:")
	log.Printf("   Mode:             %s\n", params.Mode)
	log.Printf("   Initial Capital:  $%.2f\n", *initialCapital)
	log.Printf("   Lot Size:         $%.2f\n", *lotSize)
	log.Printf("   Max Lots:         %d\n", *maxLots)
	log.Printf("   Grid Spacing:     %.2f%%\n", *gridSpacing*100)
	log.Printf("   Profit Target:    %.2f%%\n", *profitTarget*100)

	log.Println("🚀 Running backtest...")
	startRun := time.Now()

	result, err := backtest.Run(params, bars)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}
	result.Symbol = *symbol

	log.Printf("✓ Backtest completed in %s\n\n", time.Since(startRun).Round(time.Millisecond))

	reporter := backtest.NewReporter()
	fmt.Println(reporter.GenerateReport(result))

	if *compare {
		var hold *backtest.Result
		if params.Mode == backtest.ModeShortDCA {
			hold, err = backtest.ShortAndHold(params.InitialCapital, bars, params.RiskFreeRate)
		} else {
			hold, err = backtest.BuyAndHold(params.InitialCapital, bars, params.RiskFreeRate)
		}
		if err != nil {
			return fmt.Errorf("comparison failed: %w", err)
		}
		hold.Symbol = *symbol
		fmt.Println(reporter.GenerateSummary(hold))
	}

	for _, warning := range result.Warnings {
		log.Printf("⚠️  %s: %s\n", warning.Date.Format("2006-01-02"), warning.Message)
	}
	return nil
}
