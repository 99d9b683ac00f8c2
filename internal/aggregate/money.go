package aggregate

import (
	"math"

	"github.com/shopspring/decimal"
)

// Money rounds a monetary sum to cents for presentation. Sums are never rounded before
// this point.
func Money(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	rounded, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return rounded
}

// MoneyString formats a sum with exactly two decimals.
func MoneyString(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0.00"
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}
