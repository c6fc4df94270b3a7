package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pos/internal/catalog"
	"github.com/noah-isme/toko-pos/internal/coupon"
	"github.com/noah-isme/toko-pos/internal/obs"
	"github.com/noah-isme/toko-pos/internal/order"
	"github.com/noah-isme/toko-pos/internal/pricing"
)

// SessionStore persists one cart document per session.
type SessionStore interface {
	Load(ctx context.Context, id string, dst any) (bool, error)
	Save(ctx context.Context, id string, v any) error
	Delete(ctx context.Context, id string) error
}

// PriceResolver resolves catalog prices.
type PriceResolver interface {
	Resolve(ctx context.Context, productID, variantID string, override *pricing.Money) (catalog.Resolved, error)
}

// CouponEvaluator validates a coupon code against a subtotal.
type CouponEvaluator interface {
	Evaluate(ctx context.Context, code string, subtotal pricing.Money) (coupon.Applied, error)
}

// SettingsProvider supplies store pricing settings.
type SettingsProvider interface {
	Settings(ctx context.Context) pricing.Settings
}

// Service encapsulates cart operations. Failed operations never save, so the
// stored cart is unchanged by any error.
type Service struct {
	Sessions SessionStore
	Catalog  PriceResolver
	Coupons  CouponEvaluator
	Settings SettingsProvider
	Metrics  *obs.DomainMetrics
	Now      func() time.Time
	Log      zerolog.Logger
}

// AddInput is the payload for adding an item.
type AddInput struct {
	ProductID string `json:"productId" validate:"required"`
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity" validate:"required,gt=0,lte=10000"`
}

// Summary is a cart with its totals.
type Summary struct {
	Cart           Cart           `json:"cart"`
	Totals         pricing.Totals `json:"totals"`
	Display        pricing.View   `json:"display"`
	CouponEligible bool           `json:"couponEligible"`
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) ready() error {
	if s == nil || s.Sessions == nil {
		return errors.New("cart service not configured")
	}
	return nil
}

// Load returns the stored cart for sessionID, or an empty one.
func (s *Service) Load(ctx context.Context, sessionID string) (Cart, error) {
	if err := s.ready(); err != nil {
		return Cart{}, err
	}
	var c Cart
	found, err := s.Sessions.Load(ctx, sessionID, &c)
	if err != nil {
		return Cart{}, fmt.Errorf("load cart: %w", err)
	}
	if !found {
		c = Cart{}
	}
	c.SessionID = sessionID
	return c, nil
}

func (s *Service) save(ctx context.Context, c *Cart) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Version++
	c.UpdatedAt = s.now().UTC()
	if err := s.Sessions.Save(ctx, c.SessionID, c); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *Service) settings(ctx context.Context) pricing.Settings {
	if s.Settings == nil {
		return pricing.Settings{}
	}
	return s.Settings.Settings(ctx)
}

// Summarize prices c with the current store settings.
func (s *Service) Summarize(ctx context.Context, c Cart) Summary {
	st := s.settings(ctx)
	totals := c.Totals(st)
	return Summary{
		Cart:           c,
		Totals:         totals,
		Display:        totals.View(st.CurrencySymbol),
		CouponEligible: c.CouponEligible(),
	}
}

// Summary loads and prices the cart.
func (s *Service) Summary(ctx context.Context, sessionID string) (Summary, error) {
	c, err := s.Load(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}
	return s.Summarize(ctx, c), nil
}

// AddItem resolves the catalog price and adds qty units. Stock is checked
// against the combined quantity but not reserved.
func (s *Service) AddItem(ctx context.Context, sessionID string, in AddInput) (Summary, error) {
	if err := s.ready(); err != nil {
		return Summary{}, err
	}
	if s.Catalog == nil {
		return Summary{}, errors.New("cart catalog not configured")
	}
	if in.Quantity <= 0 {
		return Summary{}, fmt.Errorf("add %d: %w", in.Quantity, ErrInvalidQuantity)
	}
	c, err := s.Load(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}
	res, err := s.Catalog.Resolve(ctx, in.ProductID, in.VariantID, nil)
	if err != nil {
		return Summary{}, err
	}
	line := res.Line(in.Quantity)
	if err := res.EnsureStock(c.Quantity(line.Key()) + in.Quantity); err != nil {
		return Summary{}, err
	}
	if err := c.Add(line); err != nil {
		return Summary{}, err
	}
	if err := s.save(ctx, &c); err != nil {
		return Summary{}, err
	}
	return s.Summarize(ctx, c), nil
}

// UpdateQuantity sets the quantity for the line identified by key. Zero removes
// the line; other quantities re-resolve the price and re-check stock.
func (s *Service) UpdateQuantity(ctx context.Context, sessionID, key string, qty int) (Summary, error) {
	if err := s.ready(); err != nil {
		return Summary{}, err
	}
	if qty < 0 {
		return Summary{}, fmt.Errorf("set %d: %w", qty, ErrInvalidQuantity)
	}
	c, err := s.Load(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}
	current, err := c.Line(key)
	if err != nil {
		return Summary{}, err
	}
	next := current
	next.Quantity = qty
	if qty > 0 {
		if s.Catalog == nil {
			return Summary{}, errors.New("cart catalog not configured")
		}
		res, err := s.Catalog.Resolve(ctx, current.ProductID, current.VariantID, nil)
		if err != nil {
			return Summary{}, err
		}
		if err := res.EnsureStock(qty); err != nil {
			return Summary{}, err
		}
		next = res.Line(qty)
	}
	if err := c.Replace(key, next); err != nil {
		return Summary{}, err
	}
	if err := s.save(ctx, &c); err != nil {
		return Summary{}, err
	}
	return s.Summarize(ctx, c), nil
}

// RemoveItem deletes the line identified by key.
func (s *Service) RemoveItem(ctx context.Context, sessionID, key string) (Summary, error) {
	c, err := s.Load(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}
	if err := c.Remove(key); err != nil {
		return Summary{}, err
	}
	if err := s.save(ctx, &c); err != nil {
		return Summary{}, err
	}
	return s.Summarize(ctx, c), nil
}

// ApplyCoupon validates code against the current subtotal and holds it on the
// cart, replacing any previous coupon. A rejected code leaves the cart as it was.
func (s *Service) ApplyCoupon(ctx context.Context, sessionID, code string) (Summary, error) {
	if err := s.ready(); err != nil {
		return Summary{}, err
	}
	if s.Coupons == nil {
		return Summary{}, errors.New("cart coupons not configured")
	}
	c, err := s.Load(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}
	if c.IsEmpty() {
		return Summary{}, order.ErrEmptyCart
	}
	applied, err := s.Coupons.Evaluate(ctx, code, c.Subtotal())
	if err != nil {
		s.Metrics.Coupon(couponOutcome(err))
		return Summary{}, err
	}
	c.Coupon = &applied
	if err := s.save(ctx, &c); err != nil {
		return Summary{}, err
	}
	s.Metrics.Coupon("applied")
	s.Log.Debug().Str("session_id", sessionID).Str("coupon", applied.Code).Msg("coupon applied")
	return s.Summarize(ctx, c), nil
}

// RemoveCoupon clears the held coupon.
func (s *Service) RemoveCoupon(ctx context.Context, sessionID string) (Summary, error) {
	c, err := s.Load(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}
	if c.Coupon == nil {
		return s.Summarize(ctx, c), nil
	}
	c.Coupon = nil
	if err := s.save(ctx, &c); err != nil {
		return Summary{}, err
	}
	return s.Summarize(ctx, c), nil
}

// Clear deletes the stored cart.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.Sessions.Delete(ctx, sessionID)
}

func couponOutcome(err error) string {
	switch {
	case errors.Is(err, coupon.ErrCouponNotFound):
		return "not_found"
	case errors.Is(err, coupon.ErrCouponInactive):
		return "inactive"
	case errors.Is(err, coupon.ErrMinimumAmountNotMet):
		return "minimum_not_met"
	default:
		return "error"
	}
}
