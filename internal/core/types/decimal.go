// Package types provides the numeric types of the ledger.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
type Money = decimal.Decimal

// Quantity is a signed stock quantity. Discrete goods hold whole numbers,
// continuous goods (weight, length) keep their fractional part.
type Quantity = decimal.Decimal

// CostScale is the number of fractional digits kept for weighted-average costs.
const CostScale int32 = 4

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	return decimal.RequireFromString(s)
}

// MustQuantity creates a Quantity from a string, panics on error.
func MustQuantity(s string) Quantity {
	return decimal.RequireFromString(s)
}

// Qty creates a whole Quantity.
func Qty(n int64) Quantity {
	return decimal.NewFromInt(n)
}

// Zero returns the zero value shared by Money and Quantity.
func Zero() decimal.Decimal {
	return decimal.Zero
}

// RoundWhole rounds q half away from zero to an integer.
func RoundWhole(q Quantity) Quantity {
	return q.Round(0)
}

// MinQuantity returns the smaller of a and b.
func MinQuantity(a, b Quantity) Quantity {
	if a.LessThan(b) {
		return a
	}
	return b
}
