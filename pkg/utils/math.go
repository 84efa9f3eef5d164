package utils

import (
	"math"

	"github.com/shopspring/decimal"
)

// RoundDecimal rounds a decimal to a specific number of decimal places
func RoundDecimal(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Round(places)
}

// SqrtDecimal returns the square root of a decimal. Negative inputs yield zero.
func SqrtDecimal(d decimal.Decimal) decimal.Decimal {
	f, _ := d.Float64()
	if f <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(math.Sqrt(f))
}

// PercentChange calculates the fractional change between two values
func PercentChange(oldValue, newValue decimal.Decimal) decimal.Decimal {
	if oldValue.IsZero() {
		return decimal.Zero
	}
	return newValue.Sub(oldValue).Div(oldValue)
}

// WeightedAverage computes the weighted mean of values. Zero total weight
// yields zero.
func WeightedAverage(values, weights []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 || len(values) != len(weights) {
		return decimal.Zero
	}

	sum := decimal.Zero
	totalWeight := decimal.Zero
	for i := range values {
		sum = sum.Add(values[i].Mul(weights[i]))
		totalWeight = totalWeight.Add(weights[i])
	}

	if totalWeight.IsZero() {
		return decimal.Zero
	}
	return sum.Div(totalWeight)
}

// ClampDecimal clamps a decimal value between min and max
func ClampDecimal(value, min, max decimal.Decimal) decimal.Decimal {
	if value.LessThan(min) {
		return min
	}
	if value.GreaterThan(max) {
		return max
	}
	return value
}

// IsWithinRange checks if a value is within a range (inclusive)
func IsWithinRange(value, min, max decimal.Decimal) bool {
	return value.GreaterThanOrEqual(min) && value.LessThanOrEqual(max)
}
