package catalog_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pos/internal/catalog"
	"github.com/noah-isme/toko-pos/internal/pricing"
)

func money(v string) pricing.Money {
	return decimal.RequireFromString(v)
}

func sampleProduct() catalog.Product {
	compare := money("150")
	return catalog.Product{
		ID:                "p1",
		Slug:              "kaos-hitam",
		Title:             "Kaos Hitam",
		Description:       "Cotton tee",
		SKU:               "KH",
		Price:             money("100"),
		ComparePrice:      &compare,
		InventoryQuantity: 10,
		Images:            []string{"kaos.jpg"},
	}
}

func TestResolveBaseProduct(t *testing.T) {
	res, err := catalog.Resolve(sampleProduct(), nil, nil)
	require.NoError(t, err)
	require.True(t, res.UnitPrice.Equal(money("100")))
	require.Equal(t, pricing.SourceBase, res.Source)
	require.Equal(t, 10, res.AvailableQuantity)
	require.Equal(t, "KH", res.SKU)
}

func TestResolveVariantSupersedesProduct(t *testing.T) {
	variant := &catalog.Variant{
		ID:                "v1",
		ProductID:         "p1",
		Title:             "XL",
		SKU:               "KH-XL",
		Price:             money("120"),
		InventoryQuantity: 2,
	}
	res, err := catalog.Resolve(sampleProduct(), variant, nil)
	require.NoError(t, err)
	require.True(t, res.UnitPrice.Equal(money("120")))
	require.Equal(t, pricing.SourceVariant, res.Source)
	require.Equal(t, 2, res.AvailableQuantity)
	require.Equal(t, "KH-XL", res.SKU)
	require.Nil(t, res.ComparePrice)
	require.Equal(t, []string{"kaos.jpg"}, res.Images, "images fall back to the parent product")
	require.Equal(t, "Cotton tee", res.Description)
}

func TestResolveOverrideChangesPriceNotStock(t *testing.T) {
	variant := &catalog.Variant{ID: "v1", ProductID: "p1", Price: money("120"), InventoryQuantity: 3}
	override := money("80")
	res, err := catalog.Resolve(sampleProduct(), variant, &override)
	require.NoError(t, err)
	require.True(t, res.UnitPrice.Equal(money("80")))
	require.Equal(t, pricing.SourceOverride, res.Source)
	require.Equal(t, 3, res.AvailableQuantity)

	res, err = catalog.Resolve(sampleProduct(), nil, &override)
	require.NoError(t, err)
	require.Equal(t, 10, res.AvailableQuantity)
}

func TestResolveRejectsNegativePrice(t *testing.T) {
	p := sampleProduct()
	p.Price = money("-1")
	_, err := catalog.Resolve(p, nil, nil)
	require.True(t, errors.Is(err, catalog.ErrInvalidPrice))

	override := money("-5")
	_, err = catalog.Resolve(sampleProduct(), nil, &override)
	require.True(t, errors.Is(err, catalog.ErrInvalidPrice))
}

func TestResolveRejectsForeignVariant(t *testing.T) {
	_, err := catalog.Resolve(sampleProduct(), &catalog.Variant{ID: "v9", ProductID: "other"}, nil)
	require.True(t, errors.Is(err, catalog.ErrVariantMismatch))
}

func TestEnsureStock(t *testing.T) {
	res, err := catalog.Resolve(sampleProduct(), nil, nil)
	require.NoError(t, err)
	require.NoError(t, res.EnsureStock(10))
	require.True(t, errors.Is(res.EnsureStock(11), catalog.ErrInsufficientStock))

	line := res.Line(3)
	require.Equal(t, "p1", line.ProductID)
	require.Equal(t, 3, line.Quantity)
	require.True(t, line.Extended().Equal(money("300")))
}
