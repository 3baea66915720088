// Package pricing holds the pure money math behind drafts, proposals, and
// invoices: line totals, discounts, deposits, and the aggregate totals.
// All arithmetic is fixed-point decimal quantized to 2 places with half-up
// rounding at every step; float64 never touches a monetary value.
package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Round2 quantizes v to 2 decimal places using half-up rounding,
// e.g. 10.005 -> 10.01.
func Round2(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// Zero2 is 0.00 at money precision.
func Zero2() decimal.Decimal {
	return decimal.Zero.Round(2)
}
