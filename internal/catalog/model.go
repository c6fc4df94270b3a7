package catalog

import (
	"github.com/noah-isme/toko-pos/internal/pricing"
)

// Product is a catalog record as read from the catalog store.
type Product struct {
	ID                string         `json:"id"`
	Slug              string         `json:"slug"`
	Title             string         `json:"title"`
	Description       string         `json:"description,omitempty"`
	SKU               string         `json:"sku,omitempty"`
	Price             pricing.Money  `json:"price"`
	ComparePrice      *pricing.Money `json:"comparePrice,omitempty"`
	InventoryQuantity int            `json:"inventoryQuantity"`
	Images            []string       `json:"images,omitempty"`
}

// Variant is a purchasable sub-item of a product with its own price and stock.
type Variant struct {
	ID                string         `json:"id"`
	ProductID         string         `json:"productId"`
	Title             string         `json:"title"`
	Description       string         `json:"description,omitempty"`
	SKU               string         `json:"sku,omitempty"`
	Price             pricing.Money  `json:"price"`
	ComparePrice      *pricing.Money `json:"comparePrice,omitempty"`
	InventoryQuantity int            `json:"inventoryQuantity"`
	Images            []string       `json:"images,omitempty"`
}

// Resolved is the effective price and stock for a product with an optional
// variant and manual override.
type Resolved struct {
	ProductID         string              `json:"productId"`
	VariantID         string              `json:"variantId,omitempty"`
	SKU               string              `json:"sku,omitempty"`
	Title             string              `json:"title"`
	Description       string              `json:"description,omitempty"`
	Images            []string            `json:"images,omitempty"`
	UnitPrice         pricing.Money       `json:"unitPrice"`
	ComparePrice      *pricing.Money      `json:"comparePrice,omitempty"`
	AvailableQuantity int                 `json:"availableQuantity"`
	Source            pricing.PriceSource `json:"priceSource"`
}

// Line builds a priced line for qty units.
func (r Resolved) Line(qty int) pricing.Line {
	return pricing.Line{
		ProductID: r.ProductID,
		VariantID: r.VariantID,
		SKU:       r.SKU,
		Title:     r.Title,
		Quantity:  qty,
		UnitPrice: r.UnitPrice,
		Source:    r.Source,
	}
}
