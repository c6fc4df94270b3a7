package coupon

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/toko-pos/internal/pricing"
)

var (
	// ErrCouponNotFound is returned when no coupon matches the normalised code.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrCouponInactive is returned for coupons that are disabled or outside their validity window.
	ErrCouponInactive = errors.New("coupon expired or inactive")
	// ErrMinimumAmountNotMet indicates the subtotal is below the coupon's minimum.
	ErrMinimumAmountNotMet = errors.New("coupon minimum amount not met")
)

// Coupon is a customer-facing discount code as stored by the coupon store.
type Coupon struct {
	ID            string        `json:"id"`
	Code          string        `json:"code"`
	Kind          pricing.Kind  `json:"kind"`
	Value         pricing.Money `json:"value"`
	MinimumAmount pricing.Money `json:"minimumAmount"`
	Active        bool          `json:"active"`
	StartsAt      *time.Time    `json:"startsAt,omitempty"`
	ExpiresAt     *time.Time    `json:"expiresAt,omitempty"`
}

// NormalizeCode trims and upper-cases a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks the coupon can be applied at now against subtotal.
func (c Coupon) Validate(now time.Time, subtotal pricing.Money) error {
	if !c.Active {
		return fmt.Errorf("%s: %w", c.Code, ErrCouponInactive)
	}
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return fmt.Errorf("%s not yet valid: %w", c.Code, ErrCouponInactive)
	}
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return fmt.Errorf("%s expired: %w", c.Code, ErrCouponInactive)
	}
	if subtotal.LessThan(c.MinimumAmount) {
		return fmt.Errorf("%s requires %s: %w", c.Code, c.MinimumAmount, ErrMinimumAmountNotMet)
	}
	return nil
}

// Applied is the coupon held on a cart. Amount is the discount computed at
// apply time; totals are always recomputed from Kind and Value.
type Applied struct {
	ID            string        `json:"id,omitempty"`
	Code          string        `json:"code"`
	Kind          pricing.Kind  `json:"kind"`
	Value         pricing.Money `json:"value"`
	MinimumAmount pricing.Money `json:"minimumAmount"`
	Amount        pricing.Money `json:"amount"`
}

// Source returns the pricing source for a held coupon. A nil coupon discounts nothing.
func (a *Applied) Source() pricing.CouponSource {
	if a == nil {
		return pricing.CouponSource{}
	}
	d, err := pricing.NewDiscount(a.Kind, a.Value)
	if err != nil {
		return pricing.CouponSource{}
	}
	return pricing.CouponSource{Discount: d, Minimum: a.MinimumAmount}
}
