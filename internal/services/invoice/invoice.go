// Package invoice turns a settled order into tax invoice lines. VAT is
// extracted per line so the line sums always equal the document total.
package invoice

import (
	"github.com/shopspring/decimal"

	"syntra-settlement/internal/money"
)

var (
	// VATRate is the Israeli VAT rate applied to every line.
	VATRate = decimal.RequireFromString("0.18")

	vatDivisor = decimal.NewFromInt(1).Add(VATRate)
	hundred    = decimal.NewFromInt(100)
)

type LineKind string

const (
	LinePoints   LineKind = "points"
	LineDelivery LineKind = "delivery"
	LineProduct  LineKind = "product"
)

const (
	PointsSKU   = "POINTS"
	DeliverySKU = "DELIVERY"
)

// Item is one order item as it goes onto the invoice. LineTotal, when set,
// overrides the computed gross of the line.
type Item struct {
	SKU         string
	Description string
	Quantity    int
	Price       decimal.Decimal
	SalePrice   *decimal.Decimal
	LineTotal   *decimal.Decimal
}

func (i Item) EffectiveTotal() decimal.Decimal {
	return money.EffectivePrice(i.Price, i.SalePrice).Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Input struct {
	Items        []Item
	CouponAmount decimal.Decimal
	PointsUsed   decimal.Decimal
	DeliveryFee  decimal.Decimal
}

type Line struct {
	Kind            LineKind        `json:"kind"`
	SKU             string          `json:"sku"`
	Description     string          `json:"description"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	Net             decimal.Decimal `json:"net"`
	VAT             decimal.Decimal `json:"vat"`
}

type Document struct {
	Lines                []Line          `json:"lines"`
	TotalBeforeDiscount  decimal.Decimal `json:"total_before_discount"`
	TotalAfterDiscount   decimal.Decimal `json:"total_after_discount"`
	DiscountForDisplay   decimal.Decimal `json:"discount_for_display"`
	TotalNet             decimal.Decimal `json:"total_net"`
	TotalVAT             decimal.Decimal `json:"total_vat"`
	TotalPriceIncludeVAT decimal.Decimal `json:"total_price_include_vat"`
}

// SplitVAT extracts VAT from a gross amount: net is rounded first and VAT
// takes the remainder, so net+vat == gross for any 2-decimal gross.
func SplitVAT(gross decimal.Decimal) (net, vat decimal.Decimal) {
	net = money.Round2(gross.Div(vatDivisor))
	vat = money.Round2(gross.Sub(net))
	return net, vat
}

func newLine(kind LineKind, sku, description string, qty int, unitPrice, discountPct, gross decimal.Decimal) Line {
	gross = money.Round2(gross)
	net, vat := SplitVAT(gross)
	return Line{
		Kind:            kind,
		SKU:             sku,
		Description:     description,
		Quantity:        qty,
		UnitPrice:       money.Round2(unitPrice),
		DiscountPercent: discountPct,
		TotalPrice:      gross,
		Net:             net,
		VAT:             vat,
	}
}

// Build lays out the invoice lines in order: the points payment offset, the
// delivery fee, then one line per item. The coupon amount is taken from the
// first product line and only spills to later lines when it exceeds it.
func Build(in Input) Document {
	doc := Document{Lines: []Line{}}

	points := money.Round2(in.PointsUsed)
	if points.IsPositive() {
		doc.Lines = append(doc.Lines, newLine(LinePoints, PointsSKU, "Points redemption", -1, points, decimal.Zero, points.Neg()))
	}

	delivery := money.Round2(in.DeliveryFee)
	if delivery.IsPositive() {
		doc.Lines = append(doc.Lines, newLine(LineDelivery, DeliverySKU, "Delivery", 1, delivery, decimal.Zero, delivery))
		doc.TotalBeforeDiscount = doc.TotalBeforeDiscount.Add(delivery)
		doc.TotalAfterDiscount = doc.TotalAfterDiscount.Add(delivery)
	}

	remainingCoupon := money.NonNegative(money.Round2(in.CouponAmount))
	for _, item := range in.Items {
		qty := decimal.NewFromInt(int64(item.Quantity))
		full := money.Round2(item.Price.Mul(qty))

		var gross decimal.Decimal
		if item.LineTotal != nil {
			gross = money.Round2(*item.LineTotal)
		} else {
			gross = money.Round2(item.EffectiveTotal())
			if remainingCoupon.IsPositive() {
				applied := decimal.Min(remainingCoupon, gross)
				gross = gross.Sub(applied)
				remainingCoupon = remainingCoupon.Sub(applied)
			}
		}

		doc.Lines = append(doc.Lines, newLine(LineProduct, item.SKU, item.Description, item.Quantity, item.Price, discountPercent(full, gross), gross))
		doc.TotalBeforeDiscount = doc.TotalBeforeDiscount.Add(full)
		doc.TotalAfterDiscount = doc.TotalAfterDiscount.Add(gross)
	}

	for _, l := range doc.Lines {
		doc.TotalNet = doc.TotalNet.Add(l.Net)
		doc.TotalVAT = doc.TotalVAT.Add(l.VAT)
		doc.TotalPriceIncludeVAT = doc.TotalPriceIncludeVAT.Add(l.TotalPrice)
	}
	doc.DiscountForDisplay = money.NonNegative(doc.TotalBeforeDiscount.Sub(doc.TotalAfterDiscount))
	return doc
}

// discountPercent is the share of the full price not charged, in percent,
// floored at zero.
func discountPercent(full, charged decimal.Decimal) decimal.Decimal {
	if !full.IsPositive() {
		return decimal.Zero
	}
	pct := money.Round2(full.Sub(charged).Div(full).Mul(hundred))
	return money.NonNegative(pct)
}

// DistributeBogoTotal spreads target over the items in proportion to their
// effective totals and pins each share as the item's LineTotal. The last item
// with a positive total absorbs the rounding remainder.
func DistributeBogoTotal(items []Item, target decimal.Decimal) []Item {
	out := make([]Item, len(items))
	weights := make([]decimal.Decimal, len(items))
	for i, item := range items {
		out[i] = item
		weights[i] = item.EffectiveTotal()
	}

	shares := money.AllocateProportional(money.Round2(target), weights)
	for i := range out {
		share := shares[i]
		out[i].LineTotal = &share
	}
	return out
}
