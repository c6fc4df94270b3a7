package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidDiscount is returned when a discount value is outside its allowed range.
var ErrInvalidDiscount = errors.New("invalid discount")

var hundred = decimal.NewFromInt(100)

// Kind names the two discount shapes.
type Kind string

const (
	KindPercentage Kind = "percentage"
	KindFixed      Kind = "fixed"
)

// Discount is either a Percentage or a Fixed amount. The unexported method
// keeps the set closed so type switches over it stay exhaustive.
type Discount interface {
	// Amount returns the discount against base, always within [0, base].
	Amount(base Money) Money
	Kind() Kind
	Value() Money
	sealed()
}

// Percentage takes Rate percent (0-100) off the base.
type Percentage struct {
	Rate Money
}

// Fixed takes a flat amount off the base.
type Fixed struct {
	Off Money
}

func (p Percentage) Amount(base Money) Money {
	return clamp(base.Mul(p.Rate).Div(hundred), base)
}

func (p Percentage) Kind() Kind   { return KindPercentage }
func (p Percentage) Value() Money { return p.Rate }
func (Percentage) sealed()        {}

func (f Fixed) Amount(base Money) Money {
	return clamp(f.Off, base)
}

func (f Fixed) Kind() Kind   { return KindFixed }
func (f Fixed) Value() Money { return f.Off }
func (Fixed) sealed()        {}

// clamp bounds a requested discount to [0, base].
func clamp(requested, base Money) Money {
	if !base.IsPositive() || !requested.IsPositive() {
		return Zero
	}
	return decimal.Min(requested, base)
}

// NewDiscount builds a validated discount from its kind and value.
func NewDiscount(kind Kind, value Money) (Discount, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(string(kind)))) {
	case KindPercentage, "percent":
		if value.IsNegative() || value.GreaterThan(hundred) {
			return nil, fmt.Errorf("percentage %s out of range 0-100: %w", value, ErrInvalidDiscount)
		}
		return Percentage{Rate: value}, nil
	case KindFixed, "amount", "fixed_amount":
		if value.IsNegative() {
			return nil, fmt.Errorf("fixed amount %s is negative: %w", value, ErrInvalidDiscount)
		}
		return Fixed{Off: value}, nil
	default:
		return nil, fmt.Errorf("unknown discount kind %q: %w", kind, ErrInvalidDiscount)
	}
}

// DiscountSpec is the serialisable form of a Discount used in snapshots and payloads.
type DiscountSpec struct {
	Kind  Kind  `json:"kind" validate:"required,oneof=percentage fixed"`
	Value Money `json:"value"`
}

// SpecOf converts a discount into its serialisable form. A nil discount yields nil.
func SpecOf(d Discount) *DiscountSpec {
	if d == nil {
		return nil
	}
	return &DiscountSpec{Kind: d.Kind(), Value: d.Value()}
}

// Discount converts the spec back into a validated Discount.
func (s *DiscountSpec) Discount() (Discount, error) {
	if s == nil {
		return nil, nil
	}
	return NewDiscount(s.Kind, s.Value)
}
