package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/toko-pos/internal/coupon"
	"github.com/noah-isme/toko-pos/internal/pricing"
)

// Coupons reads coupons by code.
type Coupons struct {
	DB DBTX
}

// CouponByCode implements coupon.Store. Codes are stored upper-cased.
func (c Coupons) CouponByCode(ctx context.Context, code string) (coupon.Coupon, error) {
	var (
		out     coupon.Coupon
		kind    string
		value   string
		minimum string
	)
	err := c.DB.QueryRow(ctx, `SELECT id::text, code, kind, value::text, minimum_amount::text, active, starts_at, expires_at
		FROM coupons WHERE code = upper($1)`, coupon.NormalizeCode(code)).
		Scan(&out.ID, &out.Code, &kind, &value, &minimum, &out.Active, &out.StartsAt, &out.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return coupon.Coupon{}, fmt.Errorf("%s: %w", code, coupon.ErrCouponNotFound)
		}
		return coupon.Coupon{}, err
	}
	out.Kind = pricing.Kind(kind)
	if out.Value, err = parseMoney(value); err != nil {
		return coupon.Coupon{}, fmt.Errorf("coupon %s value: %w", out.Code, err)
	}
	if out.MinimumAmount, err = parseMoney(minimum); err != nil {
		return coupon.Coupon{}, fmt.Errorf("coupon %s minimum: %w", out.Code, err)
	}
	return out, nil
}
