package pricing

import "github.com/shopspring/decimal"

// DiscountKind selects how a discount value is interpreted.
type DiscountKind string

const (
	DiscountPercent DiscountKind = "PERCENT" // value is percentage points 0-100
	DiscountFixed   DiscountKind = "FIXED"   // value is a flat money amount
)

// DepositType selects how the deposit amount is derived from the total.
type DepositType string

const (
	DepositNone    DepositType = "NONE"
	DepositPercent DepositType = "PERCENT"
	DepositFixed   DepositType = "FIXED"
)

// DiscountSpec is the slice of a Discount row the engine needs.
type DiscountSpec struct {
	Kind   DiscountKind
	Value  decimal.Decimal
	Active bool
}

// DepositSpec is the deposit configuration carried by a draft.
type DepositSpec struct {
	Type  DepositType
	Value decimal.Decimal
}

// Totals is the full set of derived amounts for a draft or proposal.
type Totals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
	DepositAmount  decimal.Decimal
	RemainingDue   decimal.Decimal
}

// LineTotal computes a single line:
//
//	round2(hours * quantity * hourlyRate + baseRate)
func LineTotal(hours, quantity, hourlyRate, baseRate decimal.Decimal) decimal.Decimal {
	return Round2(hours.Mul(quantity).Mul(hourlyRate).Add(baseRate))
}

// DiscountAmount computes the discount against a subtotal. Inactive
// discounts contribute nothing. The result is clamped to the subtotal so a
// large FIXED discount can never drive the total negative.
func DiscountAmount(d *DiscountSpec, subtotal decimal.Decimal) decimal.Decimal {
	if d == nil || !d.Active {
		return Zero2()
	}
	var amount decimal.Decimal
	switch d.Kind {
	case DiscountPercent:
		amount = Round2(subtotal.Mul(d.Value).Div(hundred))
	case DiscountFixed:
		amount = Round2(d.Value)
	default:
		return Zero2()
	}
	if amount.GreaterThan(subtotal) {
		return Round2(subtotal)
	}
	return amount
}

// DepositAmount derives the deposit from the grand total.
func DepositAmount(d DepositSpec, total decimal.Decimal) decimal.Decimal {
	switch d.Type {
	case DepositPercent:
		return Round2(total.Mul(d.Value).Div(hundred))
	case DepositFixed:
		return Round2(d.Value)
	default:
		return Zero2()
	}
}

// Compute aggregates already-rounded line totals into the full Totals set.
// tax is a flat pass-through amount added after the discount. Calling
// Compute twice over the same inputs yields identical decimals.
func Compute(lineTotals []decimal.Decimal, discount *DiscountSpec, tax decimal.Decimal, deposit DepositSpec) Totals {
	subtotal := Zero2()
	for _, lt := range lineTotals {
		subtotal = subtotal.Add(Round2(lt))
	}
	subtotal = Round2(subtotal)

	t := Totals{Subtotal: subtotal}
	t.DiscountAmount = DiscountAmount(discount, subtotal)
	t.Total = Round2(subtotal.Sub(t.DiscountAmount)).Add(Round2(tax))
	t.DepositAmount = DepositAmount(deposit, t.Total)
	t.RemainingDue = Round2(t.Total.Sub(t.DepositAmount))
	return t
}
