package cart

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/toko-pos/internal/coupon"
	"github.com/noah-isme/toko-pos/internal/pricing"
)

var (
	// ErrInvalidQuantity is returned for negative quantities, or zero when adding.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrItemNotFound is returned when a line key is not in the cart.
	ErrItemNotFound = errors.New("cart item not found")
)

// Cart is the storefront cart held per session. It is plain state: the
// service loads it, applies one operation and saves it back.
type Cart struct {
	ID        string          `json:"id,omitempty"`
	Version   int             `json:"version"`
	SessionID string          `json:"sessionId"`
	Lines     []pricing.Line  `json:"lines"`
	Coupon    *coupon.Applied `json:"coupon,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Reference identifies this revision of the cart to the order store. It
// changes with every saved change and with every new cart in the session.
func (c Cart) Reference() string {
	if c.ID == "" {
		return ""
	}
	return fmt.Sprintf("cart:%s:%d", c.ID, c.Version)
}

// Subtotal is the gross sum of the lines.
func (c Cart) Subtotal() pricing.Money {
	total := pricing.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Extended())
	}
	return total
}

// IsEmpty reports whether no line has a positive quantity.
func (c Cart) IsEmpty() bool {
	for _, l := range c.Lines {
		if l.Quantity > 0 {
			return false
		}
	}
	return true
}

// Totals prices the cart with its held coupon.
func (c Cart) Totals(s pricing.Settings) pricing.Totals {
	return pricing.Compute(c.Lines, c.Coupon.Source(), s)
}

// CouponEligible reports whether the held coupon currently discounts the cart.
func (c Cart) CouponEligible() bool {
	return c.Coupon != nil && !c.Subtotal().LessThan(c.Coupon.MinimumAmount)
}

// Quantity returns the quantity held for key, or zero.
func (c Cart) Quantity(key string) int {
	if i := c.index(key); i >= 0 {
		return c.Lines[i].Quantity
	}
	return 0
}

// Line returns the line for key.
func (c Cart) Line(key string) (pricing.Line, error) {
	i := c.index(key)
	if i < 0 {
		return pricing.Line{}, fmt.Errorf("%s: %w", key, ErrItemNotFound)
	}
	return c.Lines[i], nil
}

func (c Cart) index(key string) int {
	key = strings.TrimSpace(key)
	for i, l := range c.Lines {
		if l.Key() == key {
			return i
		}
	}
	return -1
}

// Add merges line into the cart. An existing line for the same item gains the
// quantity and takes the freshly resolved price.
func (c *Cart) Add(line pricing.Line) error {
	if line.Quantity <= 0 {
		return fmt.Errorf("add %d: %w", line.Quantity, ErrInvalidQuantity)
	}
	line.Discount = nil
	if i := c.index(line.Key()); i >= 0 {
		line.Quantity += c.Lines[i].Quantity
		c.Lines[i] = line
		return nil
	}
	c.Lines = append(c.Lines, line)
	return nil
}

// Replace overwrites the line for key with a re-priced line. Quantity zero removes it.
func (c *Cart) Replace(key string, line pricing.Line) error {
	if line.Quantity < 0 {
		return fmt.Errorf("set %d: %w", line.Quantity, ErrInvalidQuantity)
	}
	i := c.index(key)
	if i < 0 {
		return fmt.Errorf("%s: %w", key, ErrItemNotFound)
	}
	if line.Quantity == 0 {
		c.Lines = append(c.Lines[:i:i], c.Lines[i+1:]...)
		return nil
	}
	line.Discount = nil
	c.Lines[i] = line
	return nil
}

// Remove deletes the line for key.
func (c *Cart) Remove(key string) error {
	line, err := c.Line(key)
	if err != nil {
		return err
	}
	line.Quantity = 0
	return c.Replace(key, line)
}
