package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/toko-pos/internal/pricing"
)

var (
	// ErrNonPositiveAmount is returned when a tender amount is zero or negative.
	ErrNonPositiveAmount = errors.New("payment amount must be positive")
	// ErrMethodRequired is returned when a tender has no method tag.
	ErrMethodRequired = errors.New("payment method is required")
	// ErrPaymentNotFound is returned when removing an index outside the ledger.
	ErrPaymentNotFound = errors.New("payment not found")
)

// Common method tags. Any non-blank tag is accepted.
const (
	MethodCash     = "cash"
	MethodCard     = "card"
	MethodTransfer = "transfer"
	MethodEWallet  = "ewallet"
)

// Tender is one payment received toward a sale.
type Tender struct {
	Method    string        `json:"method"`
	Amount    pricing.Money `json:"amount"`
	Reference string        `json:"reference,omitempty"`
}

// Ledger is an ordered list of tenders. Tenders can only be appended or
// removed; editing one means removing it and adding it again.
type Ledger struct {
	tenders []Tender
}

// Add appends a tender. The ledger is unchanged when validation fails.
func (l *Ledger) Add(method string, amount pricing.Money, reference string) (Tender, error) {
	t, err := newTender(method, amount, reference)
	if err != nil {
		return Tender{}, err
	}
	l.tenders = append(l.tenders, t)
	return t, nil
}

func newTender(method string, amount pricing.Money, reference string) (Tender, error) {
	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		return Tender{}, ErrMethodRequired
	}
	if !amount.IsPositive() {
		return Tender{}, fmt.Errorf("%s %s: %w", method, amount, ErrNonPositiveAmount)
	}
	return Tender{Method: method, Amount: amount, Reference: strings.TrimSpace(reference)}, nil
}

// Remove deletes the tender at index, preserving the order of the rest.
func (l *Ledger) Remove(index int) (Tender, error) {
	if index < 0 || index >= len(l.tenders) {
		return Tender{}, fmt.Errorf("index %d: %w", index, ErrPaymentNotFound)
	}
	removed := l.tenders[index]
	next := make([]Tender, 0, len(l.tenders)-1)
	next = append(next, l.tenders[:index]...)
	l.tenders = append(next, l.tenders[index+1:]...)
	return removed, nil
}

// Tenders returns a copy of the recorded tenders.
func (l Ledger) Tenders() []Tender {
	out := make([]Tender, len(l.tenders))
	copy(out, l.tenders)
	return out
}

// Clone returns a ledger that shares no storage with l.
func (l Ledger) Clone() Ledger {
	if l.tenders == nil {
		return Ledger{}
	}
	return Ledger{tenders: l.Tenders()}
}

// Len reports the number of tenders.
func (l Ledger) Len() int { return len(l.tenders) }

// TotalPaid sums all tender amounts.
func (l Ledger) TotalPaid() pricing.Money {
	total := pricing.Zero
	for _, t := range l.tenders {
		total = total.Add(t.Amount)
	}
	return total
}

// Balance is grandTotal minus everything paid. Negative means overpaid.
func (l Ledger) Balance(grandTotal pricing.Money) pricing.Money {
	return grandTotal.Sub(l.TotalPaid())
}

// Settles reports whether the tenders cover grandTotal.
func (l Ledger) Settles(grandTotal pricing.Money) bool {
	return !l.Balance(grandTotal).IsPositive()
}

// Change is the amount owed back to the customer, never negative.
func (l Ledger) Change(grandTotal pricing.Money) pricing.Money {
	balance := l.Balance(grandTotal)
	if balance.IsNegative() {
		return balance.Neg()
	}
	return pricing.Zero
}

// MarshalJSON encodes the ledger as a plain array of tenders.
func (l Ledger) MarshalJSON() ([]byte, error) {
	if l.tenders == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.tenders)
}

// UnmarshalJSON decodes and re-validates a stored array of tenders.
func (l *Ledger) UnmarshalJSON(data []byte) error {
	var raw []Tender
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	tenders := make([]Tender, 0, len(raw))
	for i, r := range raw {
		t, err := newTender(r.Method, r.Amount, r.Reference)
		if err != nil {
			return fmt.Errorf("tender %d: %w", i, err)
		}
		tenders = append(tenders, t)
	}
	l.tenders = tenders
	return nil
}
