package register

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pos/internal/catalog"
	"github.com/noah-isme/toko-pos/internal/events"
	"github.com/noah-isme/toko-pos/internal/obs"
	"github.com/noah-isme/toko-pos/internal/order"
	"github.com/noah-isme/toko-pos/internal/payment"
	"github.com/noah-isme/toko-pos/internal/pricing"
)

// Store persists one register document per device.
type Store interface {
	Load(ctx context.Context, id string, dst any) (bool, error)
	Save(ctx context.Context, id string, v any) error
}

// PriceResolver resolves catalog prices, honouring a cashier override.
type PriceResolver interface {
	Resolve(ctx context.Context, productID, variantID string, override *pricing.Money) (catalog.Resolved, error)
}

// SettingsProvider supplies store pricing settings.
type SettingsProvider interface {
	Settings(ctx context.Context) pricing.Settings
}

// Locker serialises register updates per device.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service runs POS operations against the persisted register of a device.
// Every mutation loads, changes and saves the register under a device lock;
// a failed operation saves nothing.
type Service struct {
	Sessions Store
	Catalog  PriceResolver
	Settings SettingsProvider
	Orders   order.Creator
	Locker   Locker
	LockTTL  time.Duration
	Events   *events.Bus
	Metrics  *obs.DomainMetrics
	Now      func() time.Time
	Log      zerolog.Logger
}

// AddInput is the payload for ringing up an item.
type AddInput struct {
	ProductID     string         `json:"productId" validate:"required"`
	VariantID     string         `json:"variantId"`
	Quantity      int            `json:"quantity" validate:"required,gt=0,lte=10000"`
	PriceOverride *pricing.Money `json:"priceOverride"`
	Note          string         `json:"note" validate:"max=500"`
}

// PaymentInput is the payload for recording a tender.
type PaymentInput struct {
	Method    string        `json:"method" validate:"required,max=32"`
	Amount    pricing.Money `json:"amount"`
	Reference string        `json:"reference" validate:"max=128"`
}

// Summary is the register with the live sale priced.
type Summary struct {
	Register    Register       `json:"register"`
	Totals      pricing.Totals `json:"totals"`
	Display     pricing.View   `json:"display"`
	Paid        pricing.Money  `json:"paid"`
	Balance     pricing.Money  `json:"balance"`
	Change      pricing.Money  `json:"change"`
	CanComplete bool           `json:"canComplete"`
}

// Completion is returned once a sale has been stored as an order.
type Completion struct {
	Order    order.Created    `json:"order"`
	Totals   pricing.Totals   `json:"totals"`
	Display  pricing.View     `json:"display"`
	Payments []payment.Tender `json:"payments"`
	Paid     pricing.Money    `json:"paid"`
	Change   pricing.Money    `json:"change"`
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) ready() error {
	if s == nil || s.Sessions == nil {
		return errors.New("register service not configured")
	}
	return nil
}

func (s *Service) settings(ctx context.Context) pricing.Settings {
	if s.Settings == nil {
		return pricing.Settings{}
	}
	return s.Settings.Settings(ctx)
}

// Load returns the stored register for deviceID, or a fresh one.
func (s *Service) Load(ctx context.Context, deviceID string) (Register, error) {
	if err := s.ready(); err != nil {
		return Register{}, err
	}
	var r Register
	found, err := s.Sessions.Load(ctx, deviceID, &r)
	if err != nil {
		return Register{}, fmt.Errorf("load register: %w", err)
	}
	if !found {
		r = Register{Sale: newSale()}
	}
	r.DeviceID = deviceID
	return r, nil
}

func (s *Service) save(ctx context.Context, r *Register) error {
	r.UpdatedAt = s.now().UTC()
	if err := s.Sessions.Save(ctx, r.DeviceID, r); err != nil {
		return fmt.Errorf("save register: %w", err)
	}
	return nil
}

// Summarize prices the live sale of r with the current store settings.
func (s *Service) Summarize(ctx context.Context, r Register) Summary {
	st := s.settings(ctx)
	totals := r.Sale.Totals(st)
	ledger := r.Sale.Payments
	return Summary{
		Register:    r,
		Totals:      totals,
		Display:     totals.View(st.CurrencySymbol),
		Paid:        ledger.TotalPaid(),
		Balance:     ledger.Balance(totals.GrandTotal),
		Change:      ledger.Change(totals.GrandTotal),
		CanComplete: !r.Sale.IsEmpty() && ledger.Settles(totals.GrandTotal),
	}
}

// Summary loads and prices the register.
func (s *Service) Summary(ctx context.Context, deviceID string) (Summary, error) {
	r, err := s.Load(ctx, deviceID)
	if err != nil {
		return Summary{}, err
	}
	return s.Summarize(ctx, r), nil
}

func (s *Service) locked(ctx context.Context, deviceID string, fn func(context.Context) error) error {
	if s.Locker == nil {
		return fn(ctx)
	}
	return s.Locker.WithLock(ctx, "register:"+deviceID, s.LockTTL, fn)
}

// mutate applies fn to the stored register and saves the result.
func (s *Service) mutate(ctx context.Context, deviceID string, fn func(ctx context.Context, r *Register) error) (Summary, error) {
	if err := s.ready(); err != nil {
		return Summary{}, err
	}
	var out Summary
	err := s.locked(ctx, deviceID, func(ctx context.Context) error {
		r, err := s.Load(ctx, deviceID)
		if err != nil {
			return err
		}
		if err := fn(ctx, &r); err != nil {
			return err
		}
		if err := s.save(ctx, &r); err != nil {
			return err
		}
		out = s.Summarize(ctx, r)
		return nil
	})
	return out, err
}

// AddItem resolves the price, with an optional cashier override, and rings up
// the item. Stock is checked against every unit of the item already on the
// sale but not reserved.
func (s *Service) AddItem(ctx context.Context, deviceID string, in AddInput) (Summary, error) {
	if in.Quantity <= 0 {
		return Summary{}, fmt.Errorf("add %d: %w", in.Quantity, ErrInvalidQuantity)
	}
	return s.mutate(ctx, deviceID, func(ctx context.Context, r *Register) error {
		if s.Catalog == nil {
			return errors.New("register catalog not configured")
		}
		res, err := s.Catalog.Resolve(ctx, in.ProductID, in.VariantID, in.PriceOverride)
		if err != nil {
			return err
		}
		line := res.Line(in.Quantity)
		line.Note = in.Note
		if err := res.EnsureStock(r.Sale.Quantity(line.Key()) + in.Quantity); err != nil {
			return err
		}
		_, err = r.AddLine(line)
		return err
	})
}

// UpdateQuantity sets the quantity of the line at index. Zero removes it;
// increases are checked against stock. The line keeps its price.
func (s *Service) UpdateQuantity(ctx context.Context, deviceID string, index, qty int) (Summary, error) {
	return s.mutate(ctx, deviceID, func(ctx context.Context, r *Register) error {
		if qty > 0 && index >= 0 && index < len(r.Sale.Lines) && s.Catalog != nil {
			current := r.Sale.Lines[index]
			res, err := s.Catalog.Resolve(ctx, current.ProductID, current.VariantID, nil)
			if err != nil {
				return err
			}
			others := r.Sale.Quantity(current.Key()) - current.Quantity
			if err := res.EnsureStock(others + qty); err != nil {
				return err
			}
		}
		return r.SetQuantity(index, qty)
	})
}

// RemoveItem deletes the line at index.
func (s *Service) RemoveItem(ctx context.Context, deviceID string, index int) (Summary, error) {
	return s.mutate(ctx, deviceID, func(_ context.Context, r *Register) error {
		return r.RemoveLine(index)
	})
}

// SetLineDiscount sets or clears the discount of the line at index.
func (s *Service) SetLineDiscount(ctx context.Context, deviceID string, index int, spec *pricing.DiscountSpec) (Summary, error) {
	return s.mutate(ctx, deviceID, func(_ context.Context, r *Register) error {
		return r.SetLineDiscount(index, spec)
	})
}

// SetOrderDiscount sets or clears the order-level discount.
func (s *Service) SetOrderDiscount(ctx context.Context, deviceID string, spec *pricing.DiscountSpec) (Summary, error) {
	return s.mutate(ctx, deviceID, func(_ context.Context, r *Register) error {
		return r.SetOrderDiscount(spec)
	})
}

// SetCustomer attaches or detaches the customer.
func (s *Service) SetCustomer(ctx context.Context, deviceID string, c *order.Customer) (Summary, error) {
	return s.mutate(ctx, deviceID, func(_ context.Context, r *Register) error {
		r.SetCustomer(c)
		return nil
	})
}

// SetNotes replaces the sale notes.
func (s *Service) SetNotes(ctx context.Context, deviceID, notes string) (Summary, error) {
	return s.mutate(ctx, deviceID, func(_ context.Context, r *Register) error {
		r.SetNotes(notes)
		return nil
	})
}

// AddPayment records a tender on the live sale.
func (s *Service) AddPayment(ctx context.Context, deviceID string, in PaymentInput) (Summary, error) {
	return s.mutate(ctx, deviceID, func(_ context.Context, r *Register) error {
		_, err := r.AddPayment(in.Method, in.Amount, in.Reference)
		return err
	})
}

// RemovePayment removes the tender at index.
func (s *Service) RemovePayment(ctx context.Context, deviceID string, index int) (Summary, error) {
	return s.mutate(ctx, deviceID, func(_ context.Context, r *Register) error {
		_, err := r.RemovePayment(index)
		return err
	})
}

// Park suspends the live sale.
func (s *Service) Park(ctx context.Context, deviceID string) (Summary, error) {
	var parked ParkedSale
	sum, err := s.mutate(ctx, deviceID, func(_ context.Context, r *Register) error {
		var err error
		parked, err = r.Park(s.now())
		return err
	})
	if err != nil {
		return Summary{}, err
	}
	s.transition(deviceID, parked.ID, StatusOpen, StatusParked)
	s.Events.EmitLogged(ctx, events.TopicSaleParked, parked.ID, map[string]any{
		"deviceId": deviceID,
		"parkedId": parked.ID,
		"lines":    len(parked.Sale.Lines),
	})
	return sum, nil
}

// Resume makes the parked sale at index the live sale.
func (s *Service) Resume(ctx context.Context, deviceID string, index int) (Summary, error) {
	var resumed ParkedSale
	sum, err := s.mutate(ctx, deviceID, func(_ context.Context, r *Register) error {
		var err error
		resumed, err = r.Resume(index)
		return err
	})
	if err != nil {
		return Summary{}, err
	}
	s.transition(deviceID, resumed.ID, StatusParked, StatusOpen)
	s.Events.EmitLogged(ctx, events.TopicSaleResumed, resumed.ID, map[string]any{
		"deviceId": deviceID,
		"parkedId": resumed.ID,
		"parkedAt": resumed.ParkedAt,
	})
	return sum, nil
}

// DeleteParked drops the parked sale at index.
func (s *Service) DeleteParked(ctx context.Context, deviceID string, index int) (Summary, error) {
	return s.mutate(ctx, deviceID, func(_ context.Context, r *Register) error {
		parked, err := r.DeleteParked(index)
		if err != nil {
			return err
		}
		s.Log.Info().
			Str("device_id", deviceID).
			Str("parked_id", parked.ID).
			Int("lines", len(parked.Sale.Lines)).
			Msg("parked sale deleted")
		return nil
	})
}

// Discard resets the live sale. Nothing is persisted beyond the audit log line.
func (s *Service) Discard(ctx context.Context, deviceID string) (Summary, error) {
	st := s.settings(ctx)
	return s.mutate(ctx, deviceID, func(_ context.Context, r *Register) error {
		discarded := r.Discard()
		s.Log.Info().
			Str("device_id", deviceID).
			Int("lines", len(discarded.Lines)).
			Int("payments", discarded.Payments.Len()).
			Str("grand_total", discarded.Totals(st).GrandTotal.String()).
			Msg("sale discarded")
		return nil
	})
}

// Complete stores the live sale as exactly one paid order and starts a fresh
// sale. The register is untouched when the balance is due or the order store
// fails. The order carries the sale reference, so completing a sale whose
// reset was not saved returns the stored order instead of a second one.
func (s *Service) Complete(ctx context.Context, deviceID string) (Completion, error) {
	if err := s.ready(); err != nil {
		return Completion{}, err
	}
	if s.Orders == nil {
		return Completion{}, errors.New("register orders not configured")
	}
	var (
		out     Completion
		payload order.Payload
	)
	err := s.locked(ctx, deviceID, func(ctx context.Context) error {
		r, err := s.Load(ctx, deviceID)
		if err != nil {
			return err
		}
		settings := s.settings(ctx)
		totals, err := r.Completable(settings)
		if err != nil {
			return err
		}

		sale := r.Sale
		payload = order.Payload{
			Channel:       order.ChannelPOS,
			Reference:     sale.Reference(),
			DeviceID:      deviceID,
			Customer:      sale.Customer,
			Items:         order.ItemsFromLines(sale.Lines, true),
			OrderDiscount: sale.OrderDiscount,
			Totals:        totals,
			Payments:      sale.Payments.Tenders(),
			Currency:      settings.CurrencySymbol,
			Notes:         sale.Notes,
		}
		created, err := s.Orders.CreateOrder(ctx, payload)
		if err != nil {
			s.Log.Error().Err(err).Str("device_id", deviceID).Msg("sale order persistence failed")
			return fmt.Errorf("%w: %v", order.ErrPersistence, err)
		}

		r.Finish()
		if err := s.save(ctx, &r); err != nil {
			s.Log.Error().Err(err).Str("device_id", deviceID).Str("order_id", created.ID).
				Msg("reset register after completion failed")
		}

		out = Completion{
			Order:    created,
			Totals:   totals,
			Display:  totals.View(settings.CurrencySymbol),
			Payments: payload.Payments,
			Paid:     sale.Payments.TotalPaid(),
			Change:   sale.Payments.Change(totals.GrandTotal),
		}
		return nil
	})
	if err != nil {
		return Completion{}, err
	}
	if out.Order.Replayed {
		s.Log.Warn().
			Str("device_id", deviceID).
			Str("order_id", out.Order.ID).
			Str("reference", payload.Reference).
			Msg("sale already stored, register reset")
		return out, nil
	}

	s.transition(deviceID, out.Order.ID, StatusOpen, StatusCompleted)
	for _, t := range out.Payments {
		s.Metrics.Tendered(t.Method, t.Amount.InexactFloat64())
	}
	s.Metrics.Order(string(order.ChannelPOS), out.Totals.GrandTotal.InexactFloat64())
	s.Log.Info().
		Str("device_id", deviceID).
		Str("order_id", out.Order.ID).
		Str("order_number", out.Order.OrderNumber).
		Str("grand_total", out.Totals.GrandTotal.String()).
		Str("change", out.Change.String()).
		Msg("sale completed")
	s.Events.EmitLogged(ctx, events.TopicSaleCompleted, out.Order.ID,
		order.ReceiptFor(out.Order, payload, out.Paid, out.Change))
	return out, nil
}

func (s *Service) transition(deviceID, ref string, from, to Status) {
	s.Metrics.Transition(string(from), string(to))
	s.Log.Info().
		Str("device_id", deviceID).
		Str("ref", ref).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("sale transition")
}
