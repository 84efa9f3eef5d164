// Package telemetry tracks run-level counters and renders them in Prometheus
// text exposition format.
package telemetry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	metricsMu     sync.RWMutex
	runsStarted   = make(map[string]uint64) // mode -> count
	runsCompleted = make(map[string]uint64)
	runsFailed    = make(map[string]uint64)
	dataGaps      = make(map[string]uint64) // symbol -> count
	forcedCovers  = make(map[string]uint64) // symbol -> count
	runDurations  = make(map[string][]time.Duration)
	batchesRun    uint64
)

// RecordRunStarted increments the started-run counter for a mode.
func RecordRunStarted(mode string) {
	if mode == "" {
		mode = "unknown"
	}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	runsStarted[mode]++
}

// RecordRunCompleted increments the completed-run counter and keeps the last
// 100 duration samples per mode.
func RecordRunCompleted(mode string, duration time.Duration) {
	if mode == "" {
		mode = "unknown"
	}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	runsCompleted[mode]++

	samples := runDurations[mode]
	if len(samples) >= 100 {
		samples = samples[1:]
	}
	runDurations[mode] = append(samples, duration)
}

// RecordRunFailed increments the failed-run counter for a mode.
func RecordRunFailed(mode string) {
	if mode == "" {
		mode = "unknown"
	}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	runsFailed[mode]++
}

// RecordDataGaps adds skipped-bar observations for a symbol.
func RecordDataGaps(symbol string, count int) {
	if count <= 0 {
		return
	}
	if symbol == "" {
		symbol = "unknown"
	}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	dataGaps[symbol] += uint64(count)
}

// RecordForcedCovers adds stop-loss cover observations for a symbol.
func RecordForcedCovers(symbol string, count int) {
	if count <= 0 {
		return
	}
	if symbol == "" {
		symbol = "unknown"
	}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	forcedCovers[symbol] += uint64(count)
}

// RecordBatchRun increments the batch counter.
func RecordBatchRun() {
	atomic.AddUint64(&batchesRun, 1)
}

// Reset clears every counter. Intended for tests.
func Reset() {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	runsStarted = make(map[string]uint64)
	runsCompleted = make(map[string]uint64)
	runsFailed = make(map[string]uint64)
	dataGaps = make(map[string]uint64)
	forcedCovers = make(map[string]uint64)
	runDurations = make(map[string][]time.Duration)
	atomic.StoreUint64(&batchesRun, 0)
}

// Render returns the current counters in Prometheus text format.
func Render() string {
	builder := &strings.Builder{}

	metricsMu.RLock()
	writeCounter(builder, "backtester_runs_started_total", "Total number of backtest runs started", "mode", runsStarted)
	writeCounter(builder, "backtester_runs_completed_total", "Total number of backtest runs completed", "mode", runsCompleted)
	writeCounter(builder, "backtester_runs_failed_total", "Total number of backtest runs failed", "mode", runsFailed)
	writeCounter(builder, "backtester_data_gaps_total", "Total number of skipped price bars", "symbol", dataGaps)
	writeCounter(builder, "backtester_forced_covers_total", "Total number of stop-loss forced covers", "symbol", forcedCovers)

	builder.WriteString("# HELP backtester_run_duration_seconds Average run duration over the last samples\n")
	builder.WriteString("# TYPE backtester_run_duration_seconds gauge\n")
	modes := make([]string, 0, len(runDurations))
	for mode := range runDurations {
		modes = append(modes, mode)
	}
	sort.Strings(modes)
	for _, mode := range modes {
		samples := runDurations[mode]
		if len(samples) == 0 {
			continue
		}
		var total time.Duration
		for _, sample := range samples {
			total += sample
		}
		avg := total.Seconds() / float64(len(samples))
		fmt.Fprintf(builder, "backtester_run_duration_seconds{mode=%q} %.6f\n", mode, avg)
	}
	metricsMu.RUnlock()

	builder.WriteString("# HELP backtester_batches_total Total number of batch comparisons run\n")
	builder.WriteString("# TYPE backtester_batches_total counter\n")
	fmt.Fprintf(builder, "backtester_batches_total %d\n", atomic.LoadUint64(&batchesRun))

	return builder.String()
}

func writeCounter(builder *strings.Builder, name, help, label string, counts map[string]uint64) {
	fmt.Fprintf(builder, "# HELP %s %s\n", name, help)
	fmt.Fprintf(builder, "# TYPE %s counter\n", name)
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(builder, "%s{%s=%q} %d\n", name, label, key, counts[key])
	}
}
