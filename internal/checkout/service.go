package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pos/internal/cart"
	"github.com/noah-isme/toko-pos/internal/events"
	"github.com/noah-isme/toko-pos/internal/lock"
	"github.com/noah-isme/toko-pos/internal/obs"
	"github.com/noah-isme/toko-pos/internal/order"
	"github.com/noah-isme/toko-pos/internal/pricing"
)

var (
	// ErrOrderPersistence wraps a failed order write. The cart is kept.
	ErrOrderPersistence = order.ErrPersistence
	// ErrCheckoutInProgress is returned when the session already has a submission in flight.
	ErrCheckoutInProgress = errors.New("checkout already in progress")
)

// Carts is the cart state the checkout consumes.
type Carts interface {
	Load(ctx context.Context, sessionID string) (cart.Cart, error)
	Clear(ctx context.Context, sessionID string) error
}

// Locker serialises submissions per session.
type Locker interface {
	TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Input is the checkout payload.
type Input struct {
	Customer order.Customer `json:"customer" validate:"required"`
	ShipTo   order.Address  `json:"shipTo" validate:"required"`
	Notes    string         `json:"notes" validate:"max=1000"`
}

// Result is returned after the order is stored.
type Result struct {
	Order   order.Created  `json:"order"`
	Totals  pricing.Totals `json:"totals"`
	Display pricing.View   `json:"display"`
}

// Service turns a session cart into exactly one order.
type Service struct {
	Carts    Carts
	Settings cart.SettingsProvider
	Orders   order.Creator
	Locker   Locker
	LockTTL  time.Duration
	Events   *events.Bus
	Metrics  *obs.DomainMetrics
	Log      zerolog.Logger
}

// Submit prices the cart, stores the order and clears the cart. Concurrent
// submissions for the same session are refused rather than queued. A cart
// left behind by a failed clear resolves to the order already stored for it.
func (s *Service) Submit(ctx context.Context, sessionID string, in Input) (Result, error) {
	if s == nil || s.Carts == nil || s.Orders == nil {
		return Result{}, errors.New("checkout service not configured")
	}
	if s.Locker == nil {
		return s.submit(ctx, sessionID, in)
	}
	var out Result
	err := s.Locker.TryWithLock(ctx, "checkout:"+sessionID, s.LockTTL, func(ctx context.Context) error {
		var err error
		out, err = s.submit(ctx, sessionID, in)
		return err
	})
	if errors.Is(err, lock.ErrLocked) {
		s.Metrics.Checkout("in_progress")
		return Result{}, ErrCheckoutInProgress
	}
	return out, err
}

func (s *Service) submit(ctx context.Context, sessionID string, in Input) (Result, error) {
	c, err := s.Carts.Load(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	if c.IsEmpty() {
		s.Metrics.Checkout("empty")
		return Result{}, order.ErrEmptyCart
	}

	var settings pricing.Settings
	if s.Settings != nil {
		settings = s.Settings.Settings(ctx)
	}
	totals := c.Totals(settings)
	customer := in.Customer
	shipTo := in.ShipTo
	payload := order.Payload{
		Channel:   order.ChannelOnline,
		Reference: c.Reference(),
		SessionID: sessionID,
		Customer:  &customer,
		ShipTo:    &shipTo,
		Items:     order.ItemsFromLines(c.Lines, false),
		Totals:    totals,
		Currency:  settings.CurrencySymbol,
		Notes:     in.Notes,
	}
	if c.CouponEligible() {
		payload.CouponID = c.Coupon.ID
		payload.CouponCode = c.Coupon.Code
	}

	created, err := s.Orders.CreateOrder(ctx, payload)
	if err != nil {
		s.Metrics.Checkout("persistence_failed")
		s.Log.Error().Err(err).Str("session_id", sessionID).Msg("checkout order persistence failed")
		return Result{}, fmt.Errorf("%w: %v", ErrOrderPersistence, err)
	}
	result := Result{Order: created, Totals: totals, Display: totals.View(settings.CurrencySymbol)}
	if created.Replayed {
		s.Log.Warn().
			Str("session_id", sessionID).
			Str("order_id", created.ID).
			Str("reference", payload.Reference).
			Msg("cart already checked out")
		if err := s.Carts.Clear(ctx, sessionID); err != nil {
			s.Log.Warn().Err(err).Str("session_id", sessionID).Msg("clear cart after checkout failed")
		}
		return result, nil
	}

	s.Metrics.Checkout("created")
	s.Metrics.Order(string(order.ChannelOnline), totals.GrandTotal.InexactFloat64())
	s.Log.Info().
		Str("session_id", sessionID).
		Str("order_id", created.ID).
		Str("order_number", created.OrderNumber).
		Str("grand_total", totals.GrandTotal.String()).
		Msg("checkout completed")

	if err := s.Carts.Clear(ctx, sessionID); err != nil {
		s.Log.Warn().Err(err).Str("session_id", sessionID).Msg("clear cart after checkout failed")
	}
	s.Events.EmitLogged(ctx, events.TopicOrderCreated, created.ID,
		order.ReceiptFor(created, payload, pricing.Zero, pricing.Zero))

	return result, nil
}
