package provider

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// StaticBetaProvider serves beta coefficients from a fixed table. A miss or
// a non-positive value falls back to a neutral beta of 1.0.
type StaticBetaProvider struct {
	mu    sync.RWMutex
	betas map[string]decimal.Decimal
}

// NewStaticBetaProvider creates a provider over the given table. Keys are
// upper-cased; the map may be nil.
func NewStaticBetaProvider(betas map[string]decimal.Decimal) *StaticBetaProvider {
	table := make(map[string]decimal.Decimal, len(betas))
	for symbol, beta := range betas {
		table[strings.ToUpper(strings.TrimSpace(symbol))] = beta
	}
	return &StaticBetaProvider{betas: table}
}

// Beta returns the symbol's beta, or 1.0 when unknown.
func (p *StaticBetaProvider) Beta(_ context.Context, symbol string) decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()

	beta, ok := p.betas[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok || beta.LessThanOrEqual(decimal.Zero) {
		return decimal.NewFromInt(1)
	}
	return beta
}

// Set adds or replaces a symbol's beta.
func (p *StaticBetaProvider) Set(symbol string, beta decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.betas[strings.ToUpper(strings.TrimSpace(symbol))] = beta
}
