package register_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pos/internal/catalog"
	"github.com/noah-isme/toko-pos/internal/events"
	"github.com/noah-isme/toko-pos/internal/lock"
	"github.com/noah-isme/toko-pos/internal/order"
	"github.com/noah-isme/toko-pos/internal/pricing"
	"github.com/noah-isme/toko-pos/internal/register"
	"github.com/noah-isme/toko-pos/internal/session"
)

func money(v string) pricing.Money { return decimal.RequireFromString(v) }

type stubCatalog struct {
	products map[string]catalog.Product
}

func (s stubCatalog) Resolve(_ context.Context, productID, _ string, override *pricing.Money) (catalog.Resolved, error) {
	p, ok := s.products[productID]
	if !ok {
		return catalog.Resolved{}, catalog.ErrProductNotFound
	}
	return catalog.Resolve(p, nil, override)
}

// stubOrders keeps one order per reference, like the orders table.
type stubOrders struct {
	mu       sync.Mutex
	payloads []order.Payload
	byRef    map[string]order.Created
	err      error
}

func (s *stubOrders) CreateOrder(_ context.Context, p order.Payload) (order.Created, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return order.Created{}, s.err
	}
	if c, ok := s.byRef[p.Reference]; ok && p.Reference != "" {
		c.Replayed = true
		return c, nil
	}
	s.payloads = append(s.payloads, p)
	n := len(s.payloads)
	c := order.Created{ID: fmt.Sprintf("o%d", n), OrderNumber: fmt.Sprintf("ORD-20260309-%06d", n)}
	if s.byRef == nil {
		s.byRef = map[string]order.Created{}
	}
	s.byRef[p.Reference] = c
	return c, nil
}

// flakyStore fails the next failSaves saves.
type flakyStore struct {
	register.Store
	mu        sync.Mutex
	failSaves int
}

func (f *flakyStore) failNextSave() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSaves++
}

func (f *flakyStore) Save(ctx context.Context, id string, v any) error {
	f.mu.Lock()
	if f.failSaves > 0 {
		f.failSaves--
		f.mu.Unlock()
		return errors.New("redis: connection pool timeout")
	}
	f.mu.Unlock()
	return f.Store.Save(ctx, id, v)
}

type memEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (m *memEvents) InsertEvent(_ context.Context, ev events.Event) (events.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return ev, nil
}

func (m *memEvents) topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev.Topic)
	}
	return out
}

type fixedSettings pricing.Settings

func (f fixedSettings) Settings(context.Context) pricing.Settings { return pricing.Settings(f) }

type fixture struct {
	svc    *register.Service
	orders *stubOrders
	events *memEvents
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := fixture{orders: &stubOrders{}, events: &memEvents{}}
	f.svc = &register.Service{
		Sessions: session.Store{R: client, Prefix: "register:", TTL: time.Hour},
		Catalog: stubCatalog{products: map[string]catalog.Product{
			"p1": {ID: "p1", Title: "Kopi Susu", Price: money("100"), InventoryQuantity: 5},
			"p2": {ID: "p2", Title: "Roti", Price: money("50"), InventoryQuantity: 100},
		}},
		Settings: fixedSettings{
			TaxRatePercent:        money("10"),
			FlatShippingRate:      money("25"),
			FreeShippingThreshold: money("1000"),
			CurrencySymbol:        "Rp",
		},
		Orders:  f.orders,
		Locker:  lock.Locker{R: client, Prefix: "lock:"},
		LockTTL: time.Second,
		Events:  &events.Bus{Store: f.events},
		Now:     func() time.Time { return time.Date(2026, 3, 9, 9, 30, 0, 0, time.UTC) },
	}
	return f
}

func TestAddItemWithOverrideAndStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	override := money("80")
	sum, err := f.svc.AddItem(ctx, "till-1", register.AddInput{ProductID: "p1", Quantity: 2, PriceOverride: &override})
	require.NoError(t, err)
	require.Len(t, sum.Register.Sale.Lines, 1)
	require.Equal(t, pricing.SourceOverride, sum.Register.Sale.Lines[0].Source)
	require.True(t, sum.Totals.Subtotal.Equal(money("160")))
	require.True(t, sum.Totals.Shipping.IsZero())
	require.True(t, sum.Totals.Tax.Equal(money("16")))

	_, err = f.svc.AddItem(ctx, "till-1", register.AddInput{ProductID: "p1", Quantity: 4})
	require.ErrorIs(t, err, catalog.ErrInsufficientStock)

	_, err = f.svc.UpdateQuantity(ctx, "till-1", 0, 6)
	require.ErrorIs(t, err, catalog.ErrInsufficientStock)

	sum, err = f.svc.Summary(ctx, "till-1")
	require.NoError(t, err)
	require.Equal(t, 2, sum.Register.Sale.Lines[0].Quantity)

	negative := money("-1")
	_, err = f.svc.AddItem(ctx, "till-1", register.AddInput{ProductID: "p2", Quantity: 1, PriceOverride: &negative})
	require.ErrorIs(t, err, catalog.ErrInvalidPrice)
}

func TestCompleteRequiresFullPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.Settings = fixedSettings{CurrencySymbol: "Rp"}

	_, err := f.svc.AddItem(ctx, "till-1", register.AddInput{ProductID: "p1", Quantity: 3})
	require.NoError(t, err)
	sum, err := f.svc.AddPayment(ctx, "till-1", register.PaymentInput{Method: "cash", Amount: money("200")})
	require.NoError(t, err)
	require.True(t, sum.Balance.Equal(money("100")))
	require.False(t, sum.CanComplete)

	_, err = f.svc.Complete(ctx, "till-1")
	require.ErrorIs(t, err, register.ErrBalanceDue)
	require.Empty(t, f.orders.payloads)

	sum, err = f.svc.AddPayment(ctx, "till-1", register.PaymentInput{Method: "card", Amount: money("100"), Reference: "auth-9"})
	require.NoError(t, err)
	require.True(t, sum.Balance.IsZero())
	require.True(t, sum.CanComplete)

	out, err := f.svc.Complete(ctx, "till-1")
	require.NoError(t, err)
	require.Equal(t, "o1", out.Order.ID)
	require.True(t, out.Paid.Equal(money("300")))
	require.True(t, out.Change.IsZero())
	require.Len(t, f.orders.payloads, 1)

	p := f.orders.payloads[0]
	require.Equal(t, order.ChannelPOS, p.Channel)
	require.Equal(t, "till-1", p.DeviceID)
	require.Equal(t, "sale:"+sum.Register.Sale.ID, p.Reference)
	require.Equal(t, order.StatusPaid, p.Status())
	require.Len(t, p.Payments, 2)
	require.Equal(t, "auth-9", p.Payments[1].Reference)

	sum, err = f.svc.Summary(ctx, "till-1")
	require.NoError(t, err)
	require.False(t, sum.Register.Sale.InProgress())
	require.Contains(t, f.events.topics(), events.TopicSaleCompleted)
}

func TestCompleteRecordsLineDiscountsAndChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.Settings = fixedSettings{CurrencySymbol: "Rp"}

	_, err := f.svc.AddItem(ctx, "till-1", register.AddInput{ProductID: "p1", Quantity: 2})
	require.NoError(t, err)
	_, err = f.svc.SetLineDiscount(ctx, "till-1", 0, &pricing.DiscountSpec{Kind: pricing.KindPercentage, Value: money("10")})
	require.NoError(t, err)
	sum, err := f.svc.SetOrderDiscount(ctx, "till-1", &pricing.DiscountSpec{Kind: pricing.KindFixed, Value: money("20")})
	require.NoError(t, err)
	require.True(t, sum.Totals.GrandTotal.Equal(money("160")))

	_, err = f.svc.AddPayment(ctx, "till-1", register.PaymentInput{Method: "cash", Amount: money("200")})
	require.NoError(t, err)
	out, err := f.svc.Complete(ctx, "till-1")
	require.NoError(t, err)
	require.True(t, out.Change.Equal(money("40")))

	p := f.orders.payloads[0]
	require.True(t, p.Items[0].LineDiscount.Equal(money("20")))
	require.True(t, p.Items[0].LineTotal.Equal(money("180")))
	require.NotNil(t, p.OrderDiscount)

	var receipt order.Receipt
	require.NoError(t, json.Unmarshal(f.events.events[len(f.events.events)-1].Payload, &receipt))
	require.Equal(t, "pos", receipt.Channel)
	require.True(t, receipt.Change.Equal(money("40")))
}

func TestCompletePersistenceFailureKeepsSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "till-1", register.AddInput{ProductID: "p2", Quantity: 1})
	require.NoError(t, err)
	_, err = f.svc.AddPayment(ctx, "till-1", register.PaymentInput{Method: "cash", Amount: money("100")})
	require.NoError(t, err)

	f.orders.err = errors.New("connection reset")
	_, err = f.svc.Complete(ctx, "till-1")
	require.ErrorIs(t, err, order.ErrPersistence)

	sum, err := f.svc.Summary(ctx, "till-1")
	require.NoError(t, err)
	require.Len(t, sum.Register.Sale.Lines, 1)
	require.Equal(t, 1, sum.Register.Sale.Payments.Len())

	f.orders.err = nil
	_, err = f.svc.Complete(ctx, "till-1")
	require.NoError(t, err)
	require.Len(t, f.orders.payloads, 1)
}

func TestCompleteAfterLostResetStoresOneOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	store := &flakyStore{Store: f.svc.Sessions}
	f.svc.Sessions = store

	_, err := f.svc.AddItem(ctx, "till-1", register.AddInput{ProductID: "p2", Quantity: 2})
	require.NoError(t, err)
	_, err = f.svc.AddPayment(ctx, "till-1", register.PaymentInput{Method: "cash", Amount: money("200")})
	require.NoError(t, err)

	store.failNextSave()
	first, err := f.svc.Complete(ctx, "till-1")
	require.NoError(t, err)
	require.False(t, first.Order.Replayed)

	sum, err := f.svc.Summary(ctx, "till-1")
	require.NoError(t, err)
	require.Len(t, sum.Register.Sale.Lines, 1)

	second, err := f.svc.Complete(ctx, "till-1")
	require.NoError(t, err)
	require.True(t, second.Order.Replayed)
	require.Equal(t, first.Order.ID, second.Order.ID)
	require.Len(t, f.orders.payloads, 1)

	completed := 0
	for _, topic := range f.events.topics() {
		if topic == events.TopicSaleCompleted {
			completed++
		}
	}
	require.Equal(t, 1, completed)

	sum, err = f.svc.Summary(ctx, "till-1")
	require.NoError(t, err)
	require.False(t, sum.Register.Sale.InProgress())
}

func TestParkAndResumeAcrossRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "till-1", register.AddInput{ProductID: "p1", Quantity: 1})
	require.NoError(t, err)
	_, err = f.svc.AddPayment(ctx, "till-1", register.PaymentInput{Method: "cash", Amount: money("20")})
	require.NoError(t, err)
	before, err := f.svc.Summary(ctx, "till-1")
	require.NoError(t, err)

	sum, err := f.svc.Park(ctx, "till-1")
	require.NoError(t, err)
	require.Len(t, sum.Register.Parked, 1)
	require.False(t, sum.Register.Sale.InProgress())

	_, err = f.svc.AddItem(ctx, "till-1", register.AddInput{ProductID: "p2", Quantity: 1})
	require.NoError(t, err)
	_, err = f.svc.Resume(ctx, "till-1", 0)
	require.ErrorIs(t, err, register.ErrSaleInProgress)

	_, err = f.svc.Discard(ctx, "till-1")
	require.NoError(t, err)
	sum, err = f.svc.Resume(ctx, "till-1", 0)
	require.NoError(t, err)
	require.Empty(t, sum.Register.Parked)
	require.Len(t, sum.Register.Sale.Lines, 1)
	require.Equal(t, "p1", sum.Register.Sale.Lines[0].ProductID)
	require.True(t, sum.Paid.Equal(money("20")))
	require.True(t, sum.Totals.GrandTotal.Equal(before.Totals.GrandTotal))

	require.Equal(t, []string{events.TopicSaleParked, events.TopicSaleResumed}, f.events.topics())
}

func TestDeleteParkedAndDiscardDoNotPersistOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "till-1", register.AddInput{ProductID: "p1", Quantity: 1})
	require.NoError(t, err)
	_, err = f.svc.Park(ctx, "till-1")
	require.NoError(t, err)
	sum, err := f.svc.DeleteParked(ctx, "till-1", 0)
	require.NoError(t, err)
	require.Empty(t, sum.Register.Parked)

	_, err = f.svc.DeleteParked(ctx, "till-1", 0)
	require.ErrorIs(t, err, register.ErrParkedSaleNotFound)

	_, err = f.svc.AddItem(ctx, "till-1", register.AddInput{ProductID: "p2", Quantity: 2})
	require.NoError(t, err)
	sum, err = f.svc.Discard(ctx, "till-1")
	require.NoError(t, err)
	require.False(t, sum.Register.Sale.InProgress())
	require.Empty(t, f.orders.payloads)
}

func TestRegistersAreIsolatedPerDevice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "till-1", register.AddInput{ProductID: "p1", Quantity: 1})
	require.NoError(t, err)
	sum, err := f.svc.Summary(ctx, "till-2")
	require.NoError(t, err)
	require.Equal(t, "till-2", sum.Register.DeviceID)
	require.False(t, sum.Register.Sale.InProgress())
}
