package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pos/internal/pricing"
)

// Store is the read-only coupon lookup collaborator. Implementations return
// ErrCouponNotFound when no coupon matches.
type Store interface {
	CouponByCode(ctx context.Context, code string) (Coupon, error)
}

// Service validates coupons and computes their discount.
type Service struct {
	Store Store
	Now   func() time.Time
	Log   zerolog.Logger
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Evaluate looks up code and computes its discount against subtotal.
func (s *Service) Evaluate(ctx context.Context, code string, subtotal pricing.Money) (Applied, error) {
	if s == nil || s.Store == nil {
		return Applied{}, errors.New("coupon service not configured")
	}
	normalized := NormalizeCode(code)
	if normalized == "" {
		return Applied{}, fmt.Errorf("code is required: %w", ErrCouponNotFound)
	}
	c, err := s.Store.CouponByCode(ctx, normalized)
	if err != nil {
		return Applied{}, err
	}
	if err := c.Validate(s.now(), subtotal); err != nil {
		return Applied{}, err
	}
	d, err := pricing.NewDiscount(c.Kind, c.Value)
	if err != nil {
		s.Log.Error().Err(err).Str("coupon", c.Code).Msg("coupon has invalid discount")
		return Applied{}, fmt.Errorf("%s: %w", c.Code, ErrCouponInactive)
	}
	return Applied{
		ID:            c.ID,
		Code:          NormalizeCode(c.Code),
		Kind:          d.Kind(),
		Value:         d.Value(),
		MinimumAmount: c.MinimumAmount,
		Amount:        d.Amount(subtotal),
	}, nil
}
