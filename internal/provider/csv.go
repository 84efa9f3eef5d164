package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dcagrid/backtester/internal/backtest"
	"github.com/dcagrid/backtester/internal/logger"
)

// CSVPriceProvider serves bars from per-symbol CSV files in a directory,
// one file per symbol (AAPL -> AAPL.csv). Loaded series are cached for the
// provider's lifetime; backtests never mutate bars.
type CSVPriceProvider struct {
	dir    string
	loader *backtest.DataLoader
	log    *logger.Logger

	mu    sync.RWMutex
	cache map[string][]backtest.PriceBar
}

// NewCSVPriceProvider creates a provider rooted at dir.
func NewCSVPriceProvider(dir string) *CSVPriceProvider {
	return &CSVPriceProvider{
		dir:    dir,
		loader: backtest.NewDataLoader(),
		log:    logger.Component("provider"),
		cache:  make(map[string][]backtest.PriceBar),
	}
}

// DailyBars loads and caches the symbol's series.
func (p *CSVPriceProvider) DailyBars(ctx context.Context, symbol string) ([]backtest.PriceBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := strings.ToUpper(strings.TrimSpace(symbol))
	if key == "" {
		return nil, fmt.Errorf("empty symbol")
	}

	p.mu.RLock()
	bars, ok := p.cache[key]
	p.mu.RUnlock()
	if ok {
		return bars, nil
	}

	path := filepath.Join(p.dir, key+".csv")
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no price history for %s: %w", key, err)
	}

	bars, err := p.loader.LoadFromCSV(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", key, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no usable bars in %s", path)
	}
	p.log.Symbol(key).WithField("bars", len(bars)).Debug("price history loaded")

	p.mu.Lock()
	p.cache[key] = bars
	p.mu.Unlock()
	return bars, nil
}
