package catalog

import (
	"errors"
	"fmt"

	"github.com/noah-isme/toko-pos/internal/pricing"
)

var (
	// ErrInvalidPrice indicates the catalog holds a negative or non-numeric price.
	ErrInvalidPrice = errors.New("invalid price")
	// ErrVariantMismatch indicates the variant belongs to another product.
	ErrVariantMismatch = errors.New("variant does not belong to product")
	// ErrInsufficientStock indicates the requested quantity exceeds available stock.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Resolve picks the effective unit price with precedence override > variant > product.
// Stock always comes from the variant when one is selected, never from the override.
func Resolve(product Product, variant *Variant, override *pricing.Money) (Resolved, error) {
	res := Resolved{
		ProductID:         product.ID,
		SKU:               product.SKU,
		Title:             product.Title,
		Description:       product.Description,
		Images:            product.Images,
		UnitPrice:         product.Price,
		ComparePrice:      product.ComparePrice,
		AvailableQuantity: product.InventoryQuantity,
		Source:            pricing.SourceBase,
	}

	if variant != nil {
		if variant.ProductID != "" && variant.ProductID != product.ID {
			return Resolved{}, fmt.Errorf("variant %s: %w", variant.ID, ErrVariantMismatch)
		}
		res.VariantID = variant.ID
		res.UnitPrice = variant.Price
		res.ComparePrice = variant.ComparePrice
		res.AvailableQuantity = variant.InventoryQuantity
		res.Source = pricing.SourceVariant
		if variant.SKU != "" {
			res.SKU = variant.SKU
		}
		if variant.Title != "" {
			res.Title = product.Title + " - " + variant.Title
		}
		if len(variant.Images) > 0 {
			res.Images = variant.Images
		}
		if variant.Description != "" {
			res.Description = variant.Description
		}
	}

	if override != nil {
		res.UnitPrice = *override
		res.Source = pricing.SourceOverride
	}

	if res.UnitPrice.IsNegative() {
		return Resolved{}, fmt.Errorf("product %s resolved to %s: %w", product.ID, res.UnitPrice, ErrInvalidPrice)
	}
	return res, nil
}

// EnsureStock rejects quantities above the available inventory.
func (r Resolved) EnsureStock(qty int) error {
	if qty > r.AvailableQuantity {
		return fmt.Errorf("requested %d, available %d: %w", qty, r.AvailableQuantity, ErrInsufficientStock)
	}
	return nil
}
