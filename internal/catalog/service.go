package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pos/internal/cache"
	"github.com/noah-isme/toko-pos/internal/pricing"
)

var (
	// ErrProductNotFound is returned when no product matches the lookup.
	ErrProductNotFound = errors.New("product not found")
	// ErrVariantNotFound is returned when no variant matches the lookup.
	ErrVariantNotFound = errors.New("variant not found")
)

// Store is the read-only catalog collaborator.
type Store interface {
	ProductByID(ctx context.Context, id string) (Product, error)
	ProductBySlug(ctx context.Context, slug string) (Product, error)
	VariantByID(ctx context.Context, id string) (Variant, error)
}

// Service resolves prices against the catalog store with a read-through cache.
type Service struct {
	Store Store
	Cache *cache.JSON
	Log   zerolog.Logger
}

// Product loads a product by id, consulting the cache first.
func (s *Service) Product(ctx context.Context, id string) (Product, error) {
	if s == nil || s.Store == nil {
		return Product{}, errors.New("catalog service not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Product{}, fmt.Errorf("product id is required: %w", ErrProductNotFound)
	}
	var p Product
	if ok, err := s.Cache.Get(ctx, "product:"+id, &p); err == nil && ok {
		return p, nil
	}
	p, err := s.Store.ProductByID(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if err := s.Cache.Set(ctx, "product:"+id, p); err != nil {
		s.Log.Warn().Err(err).Str("product_id", id).Msg("catalog cache write failed")
	}
	return p, nil
}

// ProductBySlug loads a product by its slug, consulting the cache first.
func (s *Service) ProductBySlug(ctx context.Context, slug string) (Product, error) {
	if s == nil || s.Store == nil {
		return Product{}, errors.New("catalog service not configured")
	}
	slug = strings.ToLower(strings.TrimSpace(slug))
	var p Product
	if ok, err := s.Cache.Get(ctx, "slug:"+slug, &p); err == nil && ok {
		return p, nil
	}
	p, err := s.Store.ProductBySlug(ctx, slug)
	if err != nil {
		return Product{}, err
	}
	if err := s.Cache.Set(ctx, "slug:"+slug, p); err != nil {
		s.Log.Warn().Err(err).Str("slug", slug).Msg("catalog cache write failed")
	}
	return p, nil
}

// Variant loads a variant by id, consulting the cache first.
func (s *Service) Variant(ctx context.Context, id string) (Variant, error) {
	if s == nil || s.Store == nil {
		return Variant{}, errors.New("catalog service not configured")
	}
	var v Variant
	if ok, err := s.Cache.Get(ctx, "variant:"+id, &v); err == nil && ok {
		return v, nil
	}
	v, err := s.Store.VariantByID(ctx, id)
	if err != nil {
		return Variant{}, err
	}
	if err := s.Cache.Set(ctx, "variant:"+id, v); err != nil {
		s.Log.Warn().Err(err).Str("variant_id", id).Msg("catalog cache write failed")
	}
	return v, nil
}

// Resolve loads the product and optional variant and resolves the effective price.
// Invalid catalog prices are logged at error level and block the caller.
func (s *Service) Resolve(ctx context.Context, productID, variantID string, override *pricing.Money) (Resolved, error) {
	product, err := s.Product(ctx, productID)
	if err != nil {
		return Resolved{}, s.logInvalid(err, productID, variantID)
	}
	var variant *Variant
	if v := strings.TrimSpace(variantID); v != "" {
		found, err := s.Variant(ctx, v)
		if err != nil {
			return Resolved{}, s.logInvalid(err, productID, variantID)
		}
		variant = &found
	}
	res, err := Resolve(product, variant, override)
	if err != nil {
		return Resolved{}, s.logInvalid(err, productID, variantID)
	}
	return res, nil
}

func (s *Service) logInvalid(err error, productID, variantID string) error {
	if errors.Is(err, ErrInvalidPrice) {
		s.Log.Error().Err(err).
			Str("product_id", productID).
			Str("variant_id", variantID).
			Msg("catalog price invalid")
	}
	return err
}
