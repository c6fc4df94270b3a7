package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/toko-pos/internal/catalog"
)

// Catalog reads products and variants.
type Catalog struct {
	DB DBTX
}

const productColumns = `id::text, slug, title, description, sku, price::text, compare_price::text, inventory_quantity, images`

func (c Catalog) scanProduct(row pgx.Row) (catalog.Product, error) {
	var (
		p       catalog.Product
		price   string
		compare *string
		images  []string
	)
	if err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Description, &p.SKU, &price, &compare, &p.InventoryQuantity, &images); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Product{}, catalog.ErrProductNotFound
		}
		return catalog.Product{}, err
	}
	var err error
	if p.Price, err = parseMoney(price); err != nil {
		return catalog.Product{}, fmt.Errorf("product %s: %v: %w", p.ID, err, catalog.ErrInvalidPrice)
	}
	if p.ComparePrice, err = parseOptionalMoney(compare); err != nil {
		return catalog.Product{}, fmt.Errorf("product %s compare price: %v: %w", p.ID, err, catalog.ErrInvalidPrice)
	}
	p.Images = images
	return p, nil
}

// ProductByID implements catalog.Store.
func (c Catalog) ProductByID(ctx context.Context, id string) (catalog.Product, error) {
	if !validUUID(id) {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return c.scanProduct(c.DB.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 AND active`, id))
}

// ProductBySlug implements catalog.Store.
func (c Catalog) ProductBySlug(ctx context.Context, slug string) (catalog.Product, error) {
	return c.scanProduct(c.DB.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE slug = $1 AND active`, slug))
}

// VariantByID implements catalog.Store.
func (c Catalog) VariantByID(ctx context.Context, id string) (catalog.Variant, error) {
	if !validUUID(id) {
		return catalog.Variant{}, catalog.ErrVariantNotFound
	}
	var (
		v       catalog.Variant
		price   string
		compare *string
		images  []string
	)
	err := c.DB.QueryRow(ctx, `SELECT id::text, product_id::text, title, description, sku, price::text,
		compare_price::text, inventory_quantity, images
		FROM product_variants WHERE id = $1`, id).
		Scan(&v.ID, &v.ProductID, &v.Title, &v.Description, &v.SKU, &price, &compare, &v.InventoryQuantity, &images)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Variant{}, catalog.ErrVariantNotFound
		}
		return catalog.Variant{}, err
	}
	if v.Price, err = parseMoney(price); err != nil {
		return catalog.Variant{}, fmt.Errorf("variant %s: %v: %w", v.ID, err, catalog.ErrInvalidPrice)
	}
	if v.ComparePrice, err = parseOptionalMoney(compare); err != nil {
		return catalog.Variant{}, fmt.Errorf("variant %s compare price: %v: %w", v.ID, err, catalog.ErrInvalidPrice)
	}
	v.Images = images
	return v, nil
}
