package register

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-pos/internal/order"
	"github.com/noah-isme/toko-pos/internal/payment"
	"github.com/noah-isme/toko-pos/internal/pricing"
)

var (
	// ErrBalanceDue blocks completion while tenders do not cover the grand total.
	ErrBalanceDue = errors.New("balance due")
	// ErrSaleInProgress refuses a resume that would overwrite a live sale.
	ErrSaleInProgress = errors.New("a sale is already in progress")
	// ErrParkedSaleNotFound is returned for an index outside the parked list.
	ErrParkedSaleNotFound = errors.New("parked sale not found")
	// ErrLineNotFound is returned for an index outside the sale lines.
	ErrLineNotFound = errors.New("sale line not found")
	// ErrInvalidQuantity is returned for quantities the operation cannot accept.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrInvalidTransition is returned when the sale is not in a state the operation accepts.
	ErrInvalidTransition = errors.New("invalid sale transition")
)

// Status is the lifecycle state of a sale.
type Status string

const (
	StatusOpen      Status = "open"
	StatusParked    Status = "parked"
	StatusCompleted Status = "completed"
)

var transitions = map[Status][]Status{
	StatusOpen:   {StatusParked, StatusCompleted},
	StatusParked: {StatusOpen},
}

// CanTransition reports whether a sale in s may move to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func checkTransition(from, to Status) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
	}
	return nil
}

// Sale is the working state of one POS transaction.
type Sale struct {
	ID            string                `json:"id,omitempty"`
	Status        Status                `json:"status"`
	Lines         []pricing.Line        `json:"lines"`
	Customer      *order.Customer       `json:"customer,omitempty"`
	OrderDiscount *pricing.DiscountSpec `json:"orderDiscount,omitempty"`
	Notes         string                `json:"notes,omitempty"`
	Payments      payment.Ledger        `json:"payments"`
}

func newSale() Sale {
	return Sale{ID: uuid.NewString(), Status: StatusOpen}
}

// Reference identifies the sale to the order store. Completing the same sale
// twice yields the same reference.
func (s Sale) Reference() string {
	if s.ID == "" {
		return ""
	}
	return "sale:" + s.ID
}

// State returns the sale status, treating the zero value as open.
func (s Sale) State() Status {
	if s.Status == "" {
		return StatusOpen
	}
	return s.Status
}

// IsEmpty reports whether the sale has nothing to sell.
func (s Sale) IsEmpty() bool { return len(s.Lines) == 0 }

// InProgress reports whether the sale holds lines or tenders.
func (s Sale) InProgress() bool { return len(s.Lines) > 0 || s.Payments.Len() > 0 }

// Totals prices the sale with line discounts first and the order discount
// second. In-store sales never ship.
func (s Sale) Totals(settings pricing.Settings) pricing.Totals {
	var orderDiscount pricing.Discount
	if d, err := s.OrderDiscount.Discount(); err == nil {
		orderDiscount = d
	}
	return pricing.Compute(s.Lines, pricing.ManualSource{Order: orderDiscount}, settings.InStore())
}

// Quantity sums the units of every line for the catalog key.
func (s Sale) Quantity(key string) int {
	total := 0
	for _, l := range s.Lines {
		if l.Key() == key {
			total += l.Quantity
		}
	}
	return total
}

func (s Sale) clone() Sale {
	out := s
	if s.Lines != nil {
		out.Lines = make([]pricing.Line, len(s.Lines))
		for i, l := range s.Lines {
			if l.Discount != nil {
				d := *l.Discount
				l.Discount = &d
			}
			out.Lines[i] = l
		}
	}
	if s.Customer != nil {
		c := *s.Customer
		out.Customer = &c
	}
	if s.OrderDiscount != nil {
		d := *s.OrderDiscount
		out.OrderDiscount = &d
	}
	out.Payments = s.Payments.Clone()
	return out
}

// ParkedSale is a snapshot of a suspended sale.
type ParkedSale struct {
	ID       string    `json:"id"`
	ParkedAt time.Time `json:"parkedAt"`
	Sale     Sale      `json:"sale"`
}

// Register is the persisted state of one POS device: the live sale plus the
// sales parked on it. Methods never leave it half-modified on error.
type Register struct {
	DeviceID  string       `json:"deviceId"`
	Sale      Sale         `json:"sale"`
	Parked    []ParkedSale `json:"parked"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

func (r *Register) line(index int) (*pricing.Line, error) {
	if index < 0 || index >= len(r.Sale.Lines) {
		return nil, fmt.Errorf("line %d: %w", index, ErrLineNotFound)
	}
	return &r.Sale.Lines[index], nil
}

// AddLine adds a priced line and returns its index. A plain line for the same
// item at the same price is merged into the existing one.
func (r *Register) AddLine(l pricing.Line) (int, error) {
	if l.Quantity <= 0 {
		return 0, fmt.Errorf("add %d: %w", l.Quantity, ErrInvalidQuantity)
	}
	if r.Sale.State() != StatusOpen {
		return 0, fmt.Errorf("add to %s sale: %w", r.Sale.State(), ErrInvalidTransition)
	}
	if r.Sale.ID == "" {
		r.Sale.ID = uuid.NewString()
	}
	l.Note = strings.TrimSpace(l.Note)
	if l.Discount == nil && l.Note == "" {
		for i, existing := range r.Sale.Lines {
			if mergeable(existing, l) {
				r.Sale.Lines[i].Quantity += l.Quantity
				return i, nil
			}
		}
	}
	r.Sale.Lines = append(r.Sale.Lines, l)
	return len(r.Sale.Lines) - 1, nil
}

func mergeable(existing, l pricing.Line) bool {
	return existing.Key() == l.Key() &&
		existing.Source == l.Source &&
		existing.UnitPrice.Equal(l.UnitPrice) &&
		existing.Discount == nil &&
		existing.Note == ""
}

// SetQuantity changes a line's quantity. Zero removes the line.
func (r *Register) SetQuantity(index, qty int) error {
	if qty < 0 {
		return fmt.Errorf("set %d: %w", qty, ErrInvalidQuantity)
	}
	l, err := r.line(index)
	if err != nil {
		return err
	}
	if qty == 0 {
		return r.RemoveLine(index)
	}
	l.Quantity = qty
	return nil
}

// RemoveLine deletes the line at index, keeping the order of the rest.
func (r *Register) RemoveLine(index int) error {
	if _, err := r.line(index); err != nil {
		return err
	}
	next := make([]pricing.Line, 0, len(r.Sale.Lines)-1)
	next = append(next, r.Sale.Lines[:index]...)
	r.Sale.Lines = append(next, r.Sale.Lines[index+1:]...)
	return nil
}

// SetLineDiscount sets or, with nil, clears the discount on one line.
func (r *Register) SetLineDiscount(index int, spec *pricing.DiscountSpec) error {
	l, err := r.line(index)
	if err != nil {
		return err
	}
	normalized, err := normalizeSpec(spec)
	if err != nil {
		return err
	}
	l.Discount = normalized
	return nil
}

// SetOrderDiscount sets or, with nil, clears the order-level discount.
func (r *Register) SetOrderDiscount(spec *pricing.DiscountSpec) error {
	normalized, err := normalizeSpec(spec)
	if err != nil {
		return err
	}
	r.Sale.OrderDiscount = normalized
	return nil
}

func normalizeSpec(spec *pricing.DiscountSpec) (*pricing.DiscountSpec, error) {
	d, err := spec.Discount()
	if err != nil {
		return nil, err
	}
	return pricing.SpecOf(d), nil
}

// SetCustomer attaches a customer. Nil detaches it.
func (r *Register) SetCustomer(c *order.Customer) {
	if c == nil || (strings.TrimSpace(c.Name) == "" && c.Email == "" && c.Phone == "") {
		r.Sale.Customer = nil
		return
	}
	cp := *c
	cp.Name = strings.TrimSpace(cp.Name)
	r.Sale.Customer = &cp
}

// SetNotes replaces the sale notes.
func (r *Register) SetNotes(notes string) {
	r.Sale.Notes = strings.TrimSpace(notes)
}

// AddPayment records a tender against the live sale.
func (r *Register) AddPayment(method string, amount pricing.Money, reference string) (payment.Tender, error) {
	return r.Sale.Payments.Add(method, amount, reference)
}

// RemovePayment removes the tender at index.
func (r *Register) RemovePayment(index int) (payment.Tender, error) {
	return r.Sale.Payments.Remove(index)
}

// Park snapshots the live sale, appends it to the parked list and starts a
// fresh sale.
func (r *Register) Park(now time.Time) (ParkedSale, error) {
	if err := checkTransition(r.Sale.State(), StatusParked); err != nil {
		return ParkedSale{}, err
	}
	if r.Sale.IsEmpty() {
		return ParkedSale{}, order.ErrEmptyCart
	}
	snapshot := r.Sale.clone()
	snapshot.Status = StatusParked
	parked := ParkedSale{ID: uuid.NewString(), ParkedAt: now.UTC(), Sale: snapshot}
	r.Parked = append(r.Parked, parked)
	r.Sale = newSale()
	return parked, nil
}

// Resume restores the parked sale at index as the live sale and removes it
// from the parked list. It refuses to overwrite a live sale in progress.
func (r *Register) Resume(index int) (ParkedSale, error) {
	if index < 0 || index >= len(r.Parked) {
		return ParkedSale{}, fmt.Errorf("parked %d: %w", index, ErrParkedSaleNotFound)
	}
	if r.Sale.InProgress() {
		return ParkedSale{}, ErrSaleInProgress
	}
	parked := r.Parked[index]
	if err := checkTransition(parked.Sale.State(), StatusOpen); err != nil {
		return ParkedSale{}, err
	}
	r.removeParked(index)
	r.Sale = parked.Sale.clone()
	r.Sale.Status = StatusOpen
	return parked, nil
}

// DeleteParked drops the parked sale at index.
func (r *Register) DeleteParked(index int) (ParkedSale, error) {
	if index < 0 || index >= len(r.Parked) {
		return ParkedSale{}, fmt.Errorf("parked %d: %w", index, ErrParkedSaleNotFound)
	}
	parked := r.Parked[index]
	r.removeParked(index)
	return parked, nil
}

func (r *Register) removeParked(index int) {
	next := make([]ParkedSale, 0, len(r.Parked)-1)
	next = append(next, r.Parked[:index]...)
	r.Parked = append(next, r.Parked[index+1:]...)
}

// Completable prices the live sale and checks it can be completed: open,
// non-empty and fully paid.
func (r *Register) Completable(settings pricing.Settings) (pricing.Totals, error) {
	if err := checkTransition(r.Sale.State(), StatusCompleted); err != nil {
		return pricing.Totals{}, err
	}
	if r.Sale.IsEmpty() {
		return pricing.Totals{}, order.ErrEmptyCart
	}
	totals := r.Sale.Totals(settings)
	if !r.Sale.Payments.Settles(totals.GrandTotal) {
		return pricing.Totals{}, fmt.Errorf("%s outstanding: %w", r.Sale.Payments.Balance(totals.GrandTotal), ErrBalanceDue)
	}
	return totals, nil
}

// Finish marks the live sale completed, returns it and starts a fresh sale.
// Parked sales are left alone.
func (r *Register) Finish() Sale {
	done := r.Sale
	done.Status = StatusCompleted
	r.Sale = newSale()
	return done
}

// Discard throws the live sale away and returns what was discarded.
func (r *Register) Discard() Sale {
	discarded := r.Sale
	r.Sale = newSale()
	return discarded
}
