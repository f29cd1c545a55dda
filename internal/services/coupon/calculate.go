package coupon

import (
	"strings"

	"github.com/shopspring/decimal"

	"syntra-settlement/internal/database/models"
	"syntra-settlement/internal/domain"
	"syntra-settlement/internal/money"
)

// Calculate returns the per-line discounts of a coupon over a cart and their
// total. chains maps SKU to its category slugs and is only consulted when the
// coupon names eligible categories. Lines with no discount are omitted.
func Calculate(c models.Coupon, lines []domain.CartLine, chains map[string][]string) ([]LineDiscount, decimal.Decimal) {
	subtotal := domain.Subtotal(lines)
	totals := make([]decimal.Decimal, len(lines))
	for i, l := range lines {
		totals[i] = money.Round2(l.LineTotal())
	}

	shares := make([]decimal.Decimal, len(lines))
	switch c.DiscountType {
	case domain.DiscountPercentAll:
		amount := decimal.Min(money.Percent(subtotal, c.DiscountValue), subtotal)
		shares = money.AllocateProportional(money.NonNegative(amount), totals)

	case domain.DiscountFixed:
		amount := decimal.Min(money.Round2(c.DiscountValue), subtotal)
		shares = money.AllocateProportional(money.NonNegative(amount), totals)

	case domain.DiscountPercentSpecific:
		for i, l := range lines {
			if !isEligible(c, l.SKU, chains, false) {
				shares[i] = decimal.Zero
				continue
			}
			shares[i] = decimal.Min(money.Percent(totals[i], c.DiscountValue), totals[i])
		}

	case domain.DiscountBogo:
		groupSize := c.BogoBuyQty + c.BogoGetQty
		for i, l := range lines {
			shares[i] = decimal.Zero
			if c.BogoBuyQty <= 0 || c.BogoGetQty <= 0 || !isEligible(c, l.SKU, chains, true) {
				continue
			}
			freeUnits := (l.Quantity / groupSize) * c.BogoGetQty
			shares[i] = money.Round2(l.EffectiveUnitPrice().Mul(decimal.NewFromInt(int64(freeUnits))))
		}

	default:
		return []LineDiscount{}, decimal.Zero
	}

	breakdown := []LineDiscount{}
	total := decimal.Zero
	for i, l := range lines {
		if !shares[i].IsPositive() {
			continue
		}
		breakdown = append(breakdown, LineDiscount{SKU: l.SKU, LineTotal: totals[i], Discount: shares[i]})
		total = total.Add(shares[i])
	}
	return breakdown, money.Round2(total)
}

// isEligible matches a SKU against the coupon's SKU list and category chain.
// emptyMeansAll makes a coupon without any restriction apply to every line.
func isEligible(c models.Coupon, sku string, chains map[string][]string, emptyMeansAll bool) bool {
	if len(c.EligibleSKUs) == 0 && len(c.EligibleCategories) == 0 {
		return emptyMeansAll
	}
	for _, s := range c.EligibleSKUs {
		if s == sku {
			return true
		}
	}
	for _, slug := range chains[sku] {
		for _, wanted := range c.EligibleCategories {
			if strings.EqualFold(slug, wanted) {
				return true
			}
		}
	}
	return false
}
