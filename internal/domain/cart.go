package domain

import (
	"github.com/shopspring/decimal"

	"syntra-settlement/internal/money"
)

// CartLine is one priced cart row as read at the start of a computation pass.
type CartLine struct {
	SKU           string           `json:"sku" binding:"required"`
	ColorName     string           `json:"color_name,omitempty"`
	Size          string           `json:"size,omitempty"`
	Quantity      int              `json:"quantity" binding:"required,min=1"`
	UnitPrice     decimal.Decimal  `json:"unit_price"`
	UnitSalePrice *decimal.Decimal `json:"unit_sale_price,omitempty"`
}

func (l CartLine) EffectiveUnitPrice() decimal.Decimal {
	return money.EffectivePrice(l.UnitPrice, l.UnitSalePrice)
}

func (l CartLine) LineTotal() decimal.Decimal {
	return l.EffectiveUnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Subtotal sums the effective line totals of a cart.
func Subtotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal())
	}
	return money.Round2(total)
}

// SKUs returns the distinct SKUs of a cart in first-seen order.
func SKUs(lines []CartLine) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.SKU]; ok {
			continue
		}
		seen[l.SKU] = struct{}{}
		out = append(out, l.SKU)
	}
	return out
}
