package pricing

import (
	"github.com/shopspring/decimal"
)

// Money is a full-precision decimal amount. Rounding happens only in View.
type Money = decimal.Decimal

// Zero is the zero amount.
var Zero = decimal.Zero

// Line is a single priced line shared by the storefront cart and the POS register.
type Line struct {
	ProductID string        `json:"productId"`
	VariantID string        `json:"variantId,omitempty"`
	SKU       string        `json:"sku,omitempty"`
	Title     string        `json:"title"`
	Quantity  int           `json:"quantity"`
	UnitPrice Money         `json:"unitPrice"`
	Source    PriceSource   `json:"priceSource"`
	Discount  *DiscountSpec `json:"discount,omitempty"`
	Note      string        `json:"note,omitempty"`
}

// Key identifies the catalog item a line refers to.
func (l Line) Key() string {
	if l.VariantID == "" {
		return l.ProductID
	}
	return l.ProductID + ":" + l.VariantID
}

// Extended is unit price times quantity. Non-positive quantities contribute nothing.
func (l Line) Extended() Money {
	if l.Quantity <= 0 {
		return Zero
	}
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LineDiscount is the clamped per-line discount. Invalid specs discount nothing.
func (l Line) LineDiscount() Money {
	d, err := l.Discount.Discount()
	if err != nil || d == nil {
		return Zero
	}
	return d.Amount(l.Extended())
}

// Net is the extended price after the line discount.
func (l Line) Net() Money {
	return l.Extended().Sub(l.LineDiscount())
}

// Source decides how subtotal and discount are derived from the lines.
type Source interface {
	resolve(lines []Line) (subtotal, discount Money)
}

// CouponSource prices a storefront cart: gross subtotal, one optional coupon.
// Per-line discounts are ignored in this flow.
type CouponSource struct {
	Discount Discount
	Minimum  Money
}

func (c CouponSource) resolve(lines []Line) (Money, Money) {
	subtotal := Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Extended())
	}
	if c.Discount == nil || subtotal.LessThan(c.Minimum) {
		return subtotal, Zero
	}
	return subtotal, c.Discount.Amount(subtotal)
}

// ManualSource prices a POS sale: line discounts first, then one order-level
// discount against the already discounted subtotal.
type ManualSource struct {
	Order Discount
}

func (m ManualSource) resolve(lines []Line) (Money, Money) {
	subtotal := Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Net())
	}
	if m.Order == nil {
		return subtotal, Zero
	}
	return subtotal, m.Order.Amount(subtotal)
}

// Compute runs the full chain: discount source, shipping, tax and aggregation.
func Compute(lines []Line, source Source, settings Settings) Totals {
	if source == nil {
		source = CouponSource{}
	}
	subtotal, discount := source.resolve(lines)
	shipping := Shipping(subtotal, discount, settings)
	tax := Tax(subtotal, discount, settings)
	return Aggregate(subtotal, discount, shipping, tax)
}
