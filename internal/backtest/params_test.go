package backtest

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDefaults(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		field  string
	}{
		{"unknown mode", func(p *Params) { p.Mode = "margin" }, "mode"},
		{"zero capital", func(p *Params) { p.InitialCapital = decimal.Zero }, "initialCapital"},
		{"zero lot size", func(p *Params) { p.LotSize = decimal.Zero }, "lotSize"},
		{"negative lot size", func(p *Params) { p.LotSize = decimal.NewFromInt(-1) }, "lotSize"},
		{"zero max lots", func(p *Params) { p.MaxLots = 0 }, "maxLots"},
		{"zero max lots to sell", func(p *Params) { p.MaxLotsToSell = 0 }, "maxLotsToSell"},
		{"max lots to sell above max lots", func(p *Params) { p.MaxLotsToSell = 11 }, "maxLotsToSell"},
		{"raw percentage grid", func(p *Params) { p.GridInterval = decimal.NewFromInt(10) }, "gridInterval"},
		{"negative profit", func(p *Params) { p.ProfitRequirement = decimal.NewFromFloat(-0.05) }, "profitRequirement"},
		{"raw percentage trailing", func(p *Params) { p.TrailingBuyRebound = decimal.NewFromInt(2) }, "trailingBuyRebound"},
		{"zero grid without dynamic", func(p *Params) { p.GridInterval = decimal.Zero }, "gridInterval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := DefaultParams()
			tt.mutate(&params)

			err := params.Validate()
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidateZeroGridWithDynamic(t *testing.T) {
	params := DefaultParams()
	params.GridInterval = decimal.Zero
	params.EnableDynamicGrid = true
	assert.NoError(t, params.Validate())
}

func TestBetaFactorGracefulDefault(t *testing.T) {
	params := DefaultParams()

	// Missing beta and coefficient both degrade to 1.0.
	assert.True(t, params.BetaFactor().Equal(decimal.NewFromInt(1)))

	params.Beta = decimal.NewFromFloat(1.5)
	assert.True(t, params.BetaFactor().Equal(decimal.NewFromFloat(1.5)))

	params.BetaCoefficient = decimal.NewFromFloat(0.8)
	assert.True(t, params.BetaFactor().Equal(decimal.NewFromFloat(1.2)))
}

func TestEffectiveScalesAllPercentages(t *testing.T) {
	params := DefaultParams()
	params.EnableBetaScaling = true
	params.Beta = decimal.NewFromInt(2)

	eff := params.Effective()

	assert.True(t, eff.GridInterval.Equal(decimal.NewFromFloat(0.20)))
	assert.True(t, eff.ProfitRequirement.Equal(decimal.NewFromFloat(0.10)))
	assert.True(t, eff.TrailingBuyActivation.Equal(decimal.NewFromFloat(0.10)))
	assert.True(t, eff.TrailingBuyRebound.Equal(decimal.NewFromFloat(0.04)))
	assert.True(t, eff.TrailingSellActivation.Equal(decimal.NewFromFloat(0.10)))
	assert.True(t, eff.TrailingSellPullback.Equal(decimal.NewFromFloat(0.04)))
	assert.True(t, eff.ConsecutiveIncrement.Equal(decimal.NewFromFloat(0.10)))
	assert.True(t, eff.DynamicGridMultiplier.Equal(decimal.NewFromInt(2)))

	// Non-percentage fields are untouched.
	assert.True(t, eff.LotSize.Equal(params.LotSize))
	assert.Equal(t, params.MaxLots, eff.MaxLots)
}

func TestEffectiveNoopWhenDisabled(t *testing.T) {
	params := DefaultParams()
	params.Beta = decimal.NewFromInt(3)

	eff := params.Effective()
	assert.True(t, eff.GridInterval.Equal(params.GridInterval))
}
