package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSqrtDecimal(t *testing.T) {
	assert.True(t, SqrtDecimal(decimal.NewFromInt(100)).Equal(decimal.NewFromInt(10)))
	assert.True(t, SqrtDecimal(decimal.Zero).IsZero())
	assert.True(t, SqrtDecimal(decimal.NewFromInt(-4)).IsZero())
}

func TestPercentChange(t *testing.T) {
	change := PercentChange(decimal.NewFromInt(100), decimal.NewFromInt(90))
	assert.True(t, change.Equal(decimal.NewFromFloat(-0.1)), "got %s", change)

	assert.True(t, PercentChange(decimal.Zero, decimal.NewFromInt(5)).IsZero())
}

func TestWeightedAverage(t *testing.T) {
	values := []decimal.Decimal{decimal.NewFromInt(100), decimal.NewFromInt(90)}
	weights := []decimal.Decimal{decimal.NewFromInt(1), decimal.NewFromInt(3)}

	avg := WeightedAverage(values, weights)
	assert.True(t, avg.Equal(decimal.NewFromFloat(92.5)), "got %s", avg)
}

func TestWeightedAverageDegenerate(t *testing.T) {
	assert.True(t, WeightedAverage(nil, nil).IsZero())
	assert.True(t, WeightedAverage(
		[]decimal.Decimal{decimal.NewFromInt(1)},
		[]decimal.Decimal{decimal.Zero},
	).IsZero())
	assert.True(t, WeightedAverage(
		[]decimal.Decimal{decimal.NewFromInt(1)},
		[]decimal.Decimal{decimal.NewFromInt(1), decimal.NewFromInt(2)},
	).IsZero())
}

func TestClampDecimal(t *testing.T) {
	min := decimal.NewFromInt(0)
	max := decimal.NewFromInt(1)

	assert.True(t, ClampDecimal(decimal.NewFromInt(2), min, max).Equal(max))
	assert.True(t, ClampDecimal(decimal.NewFromInt(-1), min, max).Equal(min))
	assert.True(t, ClampDecimal(decimal.NewFromFloat(0.5), min, max).Equal(decimal.NewFromFloat(0.5)))
}

func TestIsWithinRange(t *testing.T) {
	assert.True(t, IsWithinRange(decimal.NewFromFloat(0.5), decimal.Zero, decimal.NewFromInt(1)))
	assert.False(t, IsWithinRange(decimal.NewFromFloat(1.5), decimal.Zero, decimal.NewFromInt(1)))
}
