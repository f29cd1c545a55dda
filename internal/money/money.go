// Package money holds the fixed-point helpers every settlement component
// shares. All amounts are shopspring decimals rounded half away from zero to
// two places.
package money

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Round2 rounds half away from zero to 2 decimals.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// EffectivePrice returns sale when 0 < sale < price, otherwise price.
func EffectivePrice(price decimal.Decimal, sale *decimal.Decimal) decimal.Decimal {
	if sale != nil && sale.IsPositive() && sale.LessThan(price) {
		return *sale
	}
	return price
}

// NonNegative floors d at zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Percent returns round2(value * pct / 100).
func Percent(value, pct decimal.Decimal) decimal.Decimal {
	return Round2(value.Mul(pct).Div(hundred))
}

// Sum adds a list of amounts without intermediate rounding.
func Sum(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// AllocateProportional splits a non-negative total across weights in
// proportion to each weight. Shares are rounded to cents and never exceed
// what is left of total, so none goes negative. The last positive weight
// takes the remainder and the shares always sum to total exactly. A zero
// weight sum puts the whole total on the last element.
func AllocateProportional(total decimal.Decimal, weights []decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(weights))
	for i := range shares {
		shares[i] = decimal.Zero
	}
	if len(weights) == 0 {
		return shares
	}

	sum := Sum(weights)
	if !sum.IsPositive() {
		shares[len(weights)-1] = total
		return shares
	}

	last := -1
	for i, w := range weights {
		if w.IsPositive() {
			last = i
		}
	}

	allocated := decimal.Zero
	for i := 0; i < last; i++ {
		if !weights[i].IsPositive() {
			continue
		}
		shares[i] = decimal.Min(Round2(total.Mul(weights[i]).Div(sum)), total.Sub(allocated))
		allocated = allocated.Add(shares[i])
	}
	shares[last] = total.Sub(allocated)
	return shares
}
