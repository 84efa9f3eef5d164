// Package batch runs many independent backtests concurrently: parameter-grid
// optimization over one symbol and allocation-weighted portfolio runs over
// many.
package batch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dcagrid/backtester/internal/backtest"
	"github.com/dcagrid/backtester/internal/logger"
	"github.com/dcagrid/backtester/internal/provider"
	"github.com/dcagrid/backtester/internal/telemetry"
)

// DefaultWorkers bounds the worker pool when Options.Workers is unset.
const DefaultWorkers = 4

// Item is one symbol and parameter combination in a batch run.
type Item struct {
	Symbol string
	Params backtest.Params
}

// ItemResult carries one item's outcome. Exactly one of Result and Err is
// set; a budget overrun surfaces as a context error.
type ItemResult struct {
	Item     Item
	Result   *backtest.Result
	Err      error
	Duration time.Duration
}

// Options tunes a batch run.
type Options struct {
	Workers int
	// Budget is the wall-clock limit for the whole batch. Zero means no
	// limit. Items not started before the budget runs out fail with the
	// context error.
	Budget time.Duration
	// OnProgress, when set, is called once per finished item. Calls are
	// serialized.
	OnProgress func(completed, total int, result ItemResult)
}

// Result is a finished batch: items ranked by total return, failures last.
type Result struct {
	RunID     string
	Items     []ItemResult
	Completed int
	Failed    int
	Elapsed   time.Duration
}

// Best returns the top-ranked successful item, or nil if every item failed.
func (r *Result) Best() *ItemResult {
	if len(r.Items) == 0 || r.Items[0].Err != nil {
		return nil
	}
	return &r.Items[0]
}

// Orchestrator fans batch items out over a bounded worker pool. Per-item
// failures never abort the batch.
type Orchestrator struct {
	prices provider.PriceProvider
	log    *logger.Logger
}

// NewOrchestrator creates an orchestrator over the given price source.
func NewOrchestrator(prices provider.PriceProvider) *Orchestrator {
	return &Orchestrator{
		prices: prices,
		log:    logger.Component("batch"),
	}
}

// Run executes every item and returns the ranked outcome. The only error
// condition is an empty item list; individual failures are reported on their
// ItemResult.
func (o *Orchestrator) Run(ctx context.Context, items []Item, opts Options) (*Result, error) {
	if len(items) == 0 {
		return nil, &backtest.ValidationError{Field: "items", Message: "at least 1 batch item required"}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > len(items) {
		workers = len(items)
	}

	if opts.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Budget)
		defer cancel()
	}

	telemetry.RecordBatchRun()
	runID := uuid.New().String()
	started := time.Now()

	jobs := make(chan int)
	results := make([]ItemResult, len(items))

	var (
		wg         sync.WaitGroup
		progressMu sync.Mutex
		completed  int
	)
	report := func(idx int) {
		progressMu.Lock()
		defer progressMu.Unlock()
		completed++
		if opts.OnProgress != nil {
			opts.OnProgress(completed, len(items), results[idx])
		}
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = o.runItem(ctx, items[idx])
				report(idx)
			}
		}()
	}

	for idx := range items {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	result := &Result{
		RunID:   runID,
		Items:   results,
		Elapsed: time.Since(started),
	}
	for _, item := range results {
		if item.Err != nil {
			result.Failed++
		} else {
			result.Completed++
		}
	}
	rank(result.Items)

	o.log.WithFields(map[string]any{
		"run_id": runID, "items": len(items), "failed": result.Failed, "elapsed": result.Elapsed.String(),
	}).Info("batch finished")
	return result, nil
}

func (o *Orchestrator) runItem(ctx context.Context, item Item) ItemResult {
	started := time.Now()
	out := ItemResult{Item: item}

	if err := ctx.Err(); err != nil {
		out.Err = err
		out.Duration = time.Since(started)
		return out
	}

	mode := string(item.Params.Mode)
	telemetry.RecordRunStarted(mode)

	bars, err := o.prices.DailyBars(ctx, item.Symbol)
	if err != nil {
		telemetry.RecordRunFailed(mode)
		out.Err = err
		out.Duration = time.Since(started)
		return out
	}

	result, err := backtest.Run(item.Params, bars)
	out.Duration = time.Since(started)
	if err != nil {
		telemetry.RecordRunFailed(mode)
		out.Err = err
		return out
	}
	result.Symbol = item.Symbol

	telemetry.RecordRunCompleted(mode, out.Duration)
	gaps := 0
	for _, warning := range result.Warnings {
		if warning.Kind == backtest.WarnDataGap {
			gaps++
		}
	}
	telemetry.RecordDataGaps(item.Symbol, gaps)

	out.Result = result
	return out
}

// rank orders successful items by total return descending; failed items sink
// to the end in their original order.
func rank(items []ItemResult) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if (a.Err == nil) != (b.Err == nil) {
			return a.Err == nil
		}
		if a.Err != nil {
			return false
		}
		return a.Result.Summary.TotalReturn > b.Result.Summary.TotalReturn
	})
}

// Expand builds the parameter-grid cross product for one symbol: every grid
// spacing paired with every profit target on top of the base parameters.
func Expand(symbol string, base backtest.Params, spacings, targets []decimal.Decimal) []Item {
	items := make([]Item, 0, len(spacings)*len(targets))
	for _, spacing := range spacings {
		for _, target := range targets {
			params := base
			params.GridInterval = spacing
			params.ProfitRequirement = target
			items = append(items, Item{Symbol: symbol, Params: params})
		}
	}
	return items
}
