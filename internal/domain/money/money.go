// Package money provides fixed-precision currency arithmetic for the
// checkout pipeline. All amounts carry two fractional digits (currency
// minor units) and every aggregation boundary rounds explicitly, so the
// displayed total is deterministic regardless of line ordering.
package money

import "github.com/shopspring/decimal"

// Money is a currency amount. It is an alias so repositories can scan
// NUMERIC columns directly via pgx-shopspring-decimal.
type Money = decimal.Decimal

var (
	// Zero is the zero amount.
	Zero = decimal.Zero

	hundred = decimal.NewFromInt(100)
)

// Round2 rounds to two fractional digits, half away from zero. For the
// non-negative amounts produced by pricing this is round-half-up.
func Round2(d Money) Money {
	return d.Round(2)
}

// LineTotal computes unit price times quantity, rounded to minor units.
// Rounding happens per line, before lines are summed into a subtotal.
func LineTotal(unitPrice Money, qty int) Money {
	return Round2(unitPrice.Mul(decimal.NewFromInt(int64(qty))))
}

// Percent computes pct percent of base, rounded to minor units.
func Percent(base, pct Money) Money {
	return Round2(base.Mul(pct).Div(hundred))
}

// Min returns the smaller of a and b.
func Min(a, b Money) Money {
	return decimal.Min(a, b)
}

// ClampNonNegative floors negative amounts at zero.
func ClampNonNegative(d Money) Money {
	if d.IsNegative() {
		return Zero
	}
	return d
}

// Total combines an already-rounded subtotal and discount into the final
// total: max(0, subtotal - discount), rounded to minor units.
func Total(subtotal, discount Money) Money {
	return Round2(ClampNonNegative(subtotal.Sub(discount)))
}
