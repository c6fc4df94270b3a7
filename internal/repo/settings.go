package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/toko-pos/internal/pricing"
	"github.com/noah-isme/toko-pos/internal/settings"
)

// Settings reads the single store settings row.
type Settings struct {
	DB DBTX
}

// StoreSettings implements settings.Source.
func (s Settings) StoreSettings(ctx context.Context) (pricing.Settings, error) {
	var tax, flat, threshold, symbol string
	err := s.DB.QueryRow(ctx, `SELECT tax_rate_percent::text, flat_shipping_rate::text,
		free_shipping_threshold::text, currency_symbol
		FROM store_settings WHERE id = 1`).Scan(&tax, &flat, &threshold, &symbol)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pricing.Settings{}, settings.ErrNotConfigured
		}
		return pricing.Settings{}, err
	}
	out := pricing.Settings{CurrencySymbol: symbol}
	if out.TaxRatePercent, err = parseMoney(tax); err != nil {
		return pricing.Settings{}, fmt.Errorf("tax rate: %w", err)
	}
	if out.FlatShippingRate, err = parseMoney(flat); err != nil {
		return pricing.Settings{}, fmt.Errorf("flat shipping rate: %w", err)
	}
	if out.FreeShippingThreshold, err = parseMoney(threshold); err != nil {
		return pricing.Settings{}, fmt.Errorf("free shipping threshold: %w", err)
	}
	return out, nil
}
