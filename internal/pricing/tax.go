package pricing

// Settings holds the read-only store configuration the engine prices against.
type Settings struct {
	TaxRatePercent        Money  `json:"taxRatePercent"`
	FlatShippingRate      Money  `json:"flatShippingRate"`
	FreeShippingThreshold Money  `json:"freeShippingThreshold"`
	CurrencySymbol        string `json:"currencySymbol"`
}

// InStore returns a copy with shipping disabled, used for POS sales.
func (s Settings) InStore() Settings {
	s.FlatShippingRate = Zero
	return s
}

// Shipping is free once the post-discount subtotal reaches the threshold (inclusive).
func Shipping(subtotal, discount Money, s Settings) Money {
	if !s.FlatShippingRate.IsPositive() {
		return Zero
	}
	if subtotal.Sub(discount).GreaterThanOrEqual(s.FreeShippingThreshold) {
		return Zero
	}
	return s.FlatShippingRate
}

// Tax applies the rate to the post-discount subtotal. Shipping is never taxed.
func Tax(subtotal, discount Money, s Settings) Money {
	taxable := subtotal.Sub(discount)
	if !taxable.IsPositive() || !s.TaxRatePercent.IsPositive() {
		return Zero
	}
	return taxable.Mul(s.TaxRatePercent).Div(hundred)
}
