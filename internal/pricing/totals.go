package pricing

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

var plainNumbers sync.Once

// UsePlainJSONNumbers makes Money encode as a JSON number instead of a quoted
// string. Binaries call it once at startup, before anything is encoded.
func UsePlainJSONNumbers() {
	plainNumbers.Do(func() {
		decimal.MarshalJSONWithoutQuotes = true
	})
}

// PriceSource records which price won resolution for a line.
type PriceSource string

const (
	SourceBase     PriceSource = "base"
	SourceVariant  PriceSource = "variant"
	SourceOverride PriceSource = "override"
)

// Totals is the single authoritative money record for a cart or sale.
// GrandTotal always equals Subtotal - Discount + Shipping + Tax.
type Totals struct {
	Subtotal   Money `json:"subtotal"`
	Discount   Money `json:"discount"`
	Shipping   Money `json:"shipping"`
	Tax        Money `json:"tax"`
	GrandTotal Money `json:"grandTotal"`
}

// Aggregate composes already resolved components into Totals at full precision.
func Aggregate(subtotal, discount, shipping, tax Money) Totals {
	return Totals{
		Subtotal:   subtotal,
		Discount:   discount,
		Shipping:   shipping,
		Tax:        tax,
		GrandTotal: subtotal.Sub(discount).Add(shipping).Add(tax),
	}
}

// View is Totals rounded to two places for display.
type View struct {
	Subtotal   Money  `json:"subtotal"`
	Discount   Money  `json:"discount"`
	Shipping   Money  `json:"shipping"`
	Tax        Money  `json:"tax"`
	GrandTotal Money  `json:"grandTotal"`
	Currency   string `json:"currency,omitempty"`
}

// View rounds every component independently; the grand total is rounded from
// the full-precision value, not re-summed from rounded parts.
func (t Totals) View(currency string) View {
	return View{
		Subtotal:   t.Subtotal.Round(2),
		Discount:   t.Discount.Round(2),
		Shipping:   t.Shipping.Round(2),
		Tax:        t.Tax.Round(2),
		GrandTotal: t.GrandTotal.Round(2),
		Currency:   currency,
	}
}

// Format renders an amount with the currency symbol at two places.
func Format(symbol string, amount Money) string {
	return fmt.Sprintf("%s%s", symbol, amount.StringFixed(2))
}
