package settings

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pos/internal/cache"
	"github.com/noah-isme/toko-pos/internal/config"
	"github.com/noah-isme/toko-pos/internal/pricing"
)

// ErrNotConfigured is returned by a Source that holds no settings row.
var ErrNotConfigured = errors.New("store settings not configured")

const cacheKey = "store"

// Source is the read-only store settings collaborator.
type Source interface {
	StoreSettings(ctx context.Context) (pricing.Settings, error)
}

// Provider serves store settings from the cache, the source, or the
// configured defaults, in that order.
type Provider struct {
	Source   Source
	Defaults pricing.Settings
	Cache    *cache.JSON
	Log      zerolog.Logger
}

// FromConfig converts configured defaults into pricing settings.
func FromConfig(d config.StoreDefaults) pricing.Settings {
	return pricing.Settings{
		TaxRatePercent:        d.TaxRatePercent,
		FlatShippingRate:      d.FlatShippingRate,
		FreeShippingThreshold: d.FreeShippingThreshold,
		CurrencySymbol:        d.CurrencySymbol,
	}
}

// Settings returns the current store settings. Source failures fall back to
// the defaults so pricing never blocks on the settings table.
func (p *Provider) Settings(ctx context.Context) pricing.Settings {
	if p == nil {
		return pricing.Settings{}
	}
	var s pricing.Settings
	if ok, err := p.Cache.Get(ctx, cacheKey, &s); err == nil && ok {
		return s
	}
	if p.Source == nil {
		return p.Defaults
	}
	s, err := p.Source.StoreSettings(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotConfigured) {
			p.Log.Warn().Err(err).Msg("store settings unavailable, using defaults")
			return p.Defaults
		}
		s = p.Defaults
	}
	if s.CurrencySymbol == "" {
		s.CurrencySymbol = p.Defaults.CurrencySymbol
	}
	if err := p.Cache.Set(ctx, cacheKey, s); err != nil {
		p.Log.Warn().Err(err).Msg("settings cache write failed")
	}
	return s
}

// Invalidate drops the cached settings so the next read hits the source.
func (p *Provider) Invalidate(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.Cache.Delete(ctx, cacheKey)
}
