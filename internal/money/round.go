// Package money provides decimal-safe rounding for monetary and quantity
// values. Binary floats drift when line values are multiplied and summed in a
// chain, so every intermediate result that feeds a displayed or persisted
// total must pass through Round2, not only the final figure.
package money

import "github.com/shopspring/decimal"

// Round rounds x half-up to the given number of decimal places.
func Round(x float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(x).Round(places).Float64()
	return f
}

// Round2 rounds x half-up to two decimal places, the smallest currency unit.
func Round2(x float64) float64 {
	return Round(x, 2)
}

// Mul2 multiplies a quantity by a unit price and rounds the product to two
// decimal places in a single decimal operation.
func Mul2(qty float64, unitPrice float64) float64 {
	f, _ := decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(unitPrice)).Round(2).Float64()
	return f
}

// Sum2 adds the provided values in decimal space and rounds the total to two
// decimal places.
func Sum2(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	f, _ := total.Round(2).Float64()
	return f
}
