package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/toko-pos/internal/payment"
	"github.com/noah-isme/toko-pos/internal/pricing"
)

var (
	// ErrOrderNotFound is returned when no order matches the lookup.
	ErrOrderNotFound = errors.New("order not found")
	// ErrEmptyCart blocks checkout and sale completion when there is nothing to sell.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrPersistence wraps a failed order write. Callers keep their state so the
	// submission can be repeated; nothing is retried automatically.
	ErrPersistence = errors.New("order could not be saved")
)

// Channel identifies where an order was placed.
type Channel string

const (
	ChannelOnline Channel = "online"
	ChannelPOS    Channel = "pos"
)

// Status values stored with each order.
const (
	StatusPending = "pending"
	StatusPaid    = "paid"
)

// Customer is the optional buyer attached to a sale or checkout.
type Customer struct {
	Name  string `json:"name" validate:"omitempty,max=200"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Phone string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

// Address is the delivery address for shipped orders.
type Address struct {
	ReceiverName string `json:"receiverName" validate:"required,max=200"`
	Phone        string `json:"phone" validate:"required,max=32"`
	Line1        string `json:"line1" validate:"required"`
	Line2        string `json:"line2,omitempty"`
	City         string `json:"city" validate:"required"`
	PostalCode   string `json:"postalCode" validate:"required,max=16"`
	Country      string `json:"country" validate:"required,len=2"`
}

// Item is one persisted order line.
type Item struct {
	ProductID    string              `json:"productId"`
	VariantID    string              `json:"variantId,omitempty"`
	SKU          string              `json:"sku,omitempty"`
	Title        string              `json:"title"`
	Quantity     int                 `json:"quantity"`
	UnitPrice    pricing.Money       `json:"unitPrice"`
	PriceSource  pricing.PriceSource `json:"priceSource"`
	LineDiscount pricing.Money       `json:"lineDiscount"`
	LineTotal    pricing.Money       `json:"lineTotal"`
	Note         string              `json:"note,omitempty"`
}

// Payload is everything the order store needs to persist one order.
type Payload struct {
	Channel Channel `json:"channel"`
	// Reference is unique per sale or checked-out cart. A repeated reference
	// resolves to the order already stored under it.
	Reference     string                `json:"reference,omitempty"`
	SessionID     string                `json:"sessionId,omitempty"`
	DeviceID      string                `json:"deviceId,omitempty"`
	Customer      *Customer             `json:"customer,omitempty"`
	ShipTo        *Address              `json:"shipTo,omitempty"`
	Items         []Item                `json:"items"`
	CouponID      string                `json:"couponId,omitempty"`
	CouponCode    string                `json:"couponCode,omitempty"`
	OrderDiscount *pricing.DiscountSpec `json:"orderDiscount,omitempty"`
	Totals        pricing.Totals        `json:"totals"`
	Payments      []payment.Tender      `json:"payments,omitempty"`
	Currency      string                `json:"currency"`
	Notes         string                `json:"notes,omitempty"`
}

// Status derives the initial status: POS sales are settled at the till.
func (p Payload) Status() string {
	if p.Channel == ChannelPOS {
		return StatusPaid
	}
	return StatusPending
}

// Created is what the order store returns after persisting.
type Created struct {
	ID          string `json:"id"`
	OrderNumber string `json:"orderNumber"`
	// Replayed is set when the reference matched an existing order.
	Replayed bool `json:"-"`
}

// Record is a stored order as read back.
type Record struct {
	Created
	Payload
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Receipt is the payload carried by order.created and sale.completed events.
type Receipt struct {
	OrderID     string        `json:"orderId"`
	OrderNumber string        `json:"orderNumber"`
	Channel     string        `json:"channel"`
	GrandTotal  pricing.Money `json:"grandTotal"`
	Paid        pricing.Money `json:"paid"`
	Change      pricing.Money `json:"change"`
	Currency    string        `json:"currency"`
	Email       string        `json:"email,omitempty"`
}

// ReceiptFor builds the event payload for a persisted order.
func ReceiptFor(c Created, p Payload, paid, change pricing.Money) Receipt {
	r := Receipt{
		OrderID:     c.ID,
		OrderNumber: c.OrderNumber,
		Channel:     string(p.Channel),
		GrandTotal:  p.Totals.GrandTotal,
		Paid:        paid,
		Change:      change,
		Currency:    p.Currency,
	}
	if p.Customer != nil {
		r.Email = p.Customer.Email
	}
	return r
}

// Creator persists orders. It is called exactly once per completed checkout or sale.
type Creator interface {
	CreateOrder(ctx context.Context, p Payload) (Created, error)
}

// Reader loads stored orders.
type Reader interface {
	OrderByID(ctx context.Context, id string) (Record, error)
}

// ItemsFromLines converts priced lines into order items. Line discounts are
// only recorded when the caller priced with them.
func ItemsFromLines(lines []pricing.Line, withLineDiscounts bool) []Item {
	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		disc := pricing.Zero
		if withLineDiscounts {
			disc = l.LineDiscount()
		}
		items = append(items, Item{
			ProductID:    l.ProductID,
			VariantID:    l.VariantID,
			SKU:          l.SKU,
			Title:        l.Title,
			Quantity:     l.Quantity,
			UnitPrice:    l.UnitPrice,
			PriceSource:  l.Source,
			LineDiscount: disc,
			LineTotal:    l.Extended().Sub(disc),
			Note:         l.Note,
		})
	}
	return items
}

// FormatNumber renders an order number as ORD-YYYYMMDD-NNNNNN.
func FormatNumber(at time.Time, seq int64) string {
	return fmt.Sprintf("ORD-%s-%06d", at.UTC().Format("20060102"), seq%1000000)
}
