package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pos/internal/catalog"
	"github.com/noah-isme/toko-pos/internal/coupon"
	"github.com/noah-isme/toko-pos/internal/events"
	"github.com/noah-isme/toko-pos/internal/order"
	"github.com/noah-isme/toko-pos/internal/payment"
	"github.com/noah-isme/toko-pos/internal/pricing"
	"github.com/noah-isme/toko-pos/internal/settings"
)

const productID = "7f1c8a52-3f5e-4a8e-9d0c-2c6b1c1d0a01"

func strPtr(s string) *string { return &s }

func productRow(price string, compare *string) fakeRow {
	return fakeRow{values: []any{productID, "mug", "Mug", "Stoneware", "MUG-1", price, compare, 4, []string{"a.jpg"}}}
}

func TestCatalogProductByID(t *testing.T) {
	db := &fakeDB{rows: map[string]fakeRow{"FROM products": productRow("12.50", strPtr("15"))}}
	p, err := Catalog{DB: db}.ProductByID(context.Background(), productID)
	require.NoError(t, err)
	require.Equal(t, "mug", p.Slug)
	require.True(t, p.Price.Equal(decimal.RequireFromString("12.5")))
	require.NotNil(t, p.ComparePrice)
	require.Equal(t, 4, p.InventoryQuantity)
	require.Equal(t, []string{"a.jpg"}, p.Images)
}

func TestCatalogRejectsMalformedIDWithoutQuery(t *testing.T) {
	db := &fakeDB{}
	_, err := Catalog{DB: db}.ProductByID(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
	_, err = Catalog{DB: db}.VariantByID(context.Background(), "nope")
	require.ErrorIs(t, err, catalog.ErrVariantNotFound)
	require.Empty(t, db.queries)
}

func TestCatalogNaNPriceIsInvalid(t *testing.T) {
	db := &fakeDB{rows: map[string]fakeRow{"FROM products": productRow("NaN", nil)}}
	_, err := Catalog{DB: db}.ProductBySlug(context.Background(), "mug")
	require.ErrorIs(t, err, catalog.ErrInvalidPrice)
}

func TestCatalogMissingProduct(t *testing.T) {
	_, err := Catalog{DB: &fakeDB{}}.ProductByID(context.Background(), productID)
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestCouponsByCode(t *testing.T) {
	db := &fakeDB{rows: map[string]fakeRow{"FROM coupons": {values: []any{
		"c1", "SAVE10", "percentage", "10", "50", true, (*time.Time)(nil), (*time.Time)(nil),
	}}}}
	c, err := Coupons{DB: db}.CouponByCode(context.Background(), " save10 ")
	require.NoError(t, err)
	require.Equal(t, pricing.KindPercentage, c.Kind)
	require.True(t, c.MinimumAmount.Equal(decimal.NewFromInt(50)))

	_, err = Coupons{DB: &fakeDB{}}.CouponByCode(context.Background(), "nope")
	require.ErrorIs(t, err, coupon.ErrCouponNotFound)
}

func TestSettingsRow(t *testing.T) {
	db := &fakeDB{rows: map[string]fakeRow{"FROM store_settings": {values: []any{"5", "50", "1000", "Rp"}}}}
	s, err := Settings{DB: db}.StoreSettings(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Rp", s.CurrencySymbol)
	require.True(t, s.FreeShippingThreshold.Equal(decimal.NewFromInt(1000)))

	_, err = Settings{DB: &fakeDB{}}.StoreSettings(context.Background())
	require.ErrorIs(t, err, settings.ErrNotConfigured)
}

func TestEventsInsert(t *testing.T) {
	db := &fakeDB{}
	ev := events.Event{ID: "e1", Topic: events.TopicOrderCreated, AggregateID: "o1", Payload: []byte(`{}`)}
	out, err := Events{DB: db}.InsertEvent(context.Background(), ev)
	require.NoError(t, err)
	require.Equal(t, "e1", out.ID)
	require.Len(t, db.execs, 1)
}

func samplePayload() order.Payload {
	return order.Payload{
		Channel:  order.ChannelPOS,
		DeviceID: "till-1",
		Items: []order.Item{{
			ProductID: productID, Title: "Mug", Quantity: 2,
			UnitPrice: decimal.NewFromInt(100), PriceSource: pricing.SourceBase,
			LineDiscount: decimal.Zero, LineTotal: decimal.NewFromInt(200),
		}},
		Totals:   pricing.Aggregate(decimal.NewFromInt(200), decimal.Zero, decimal.Zero, decimal.Zero),
		Payments: []payment.Tender{{Method: payment.MethodCash, Amount: decimal.NewFromInt(200)}},
		Currency: "$",
	}
}

func TestOrdersCreateInOneTransaction(t *testing.T) {
	db := &fakeDB{rows: map[string]fakeRow{
		"nextval":            {values: []any{int64(42)}},
		"INSERT INTO orders": {values: []any{"order-uuid"}},
	}}
	repo := Orders{DB: db, Now: func() time.Time { return time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC) }}

	created, err := repo.CreateOrder(context.Background(), samplePayload())
	require.NoError(t, err)
	require.Equal(t, "order-uuid", created.ID)
	require.Equal(t, "ORD-20260309-000042", created.OrderNumber)
	require.Equal(t, 2, db.tx.batched)
	require.True(t, db.tx.committed)
	require.False(t, db.tx.rolledBack)
}

func TestOrdersCreateRollsBackOnLineFailure(t *testing.T) {
	db := &fakeDB{rows: map[string]fakeRow{
		"nextval":            {values: []any{int64(1)}},
		"INSERT INTO orders": {values: []any{"order-uuid"}},
	}}
	db.tx = &fakeTx{db: db, batchErr: errors.New("constraint")}

	_, err := Orders{DB: db}.CreateOrder(context.Background(), samplePayload())
	require.Error(t, err)
	require.False(t, db.tx.committed)
	require.True(t, db.tx.rolledBack)
}

func TestOrdersCreateChecksReferenceFirst(t *testing.T) {
	db := &fakeDB{rows: map[string]fakeRow{
		"nextval":            {values: []any{int64(7)}},
		"INSERT INTO orders": {values: []any{"order-uuid"}},
	}}
	p := samplePayload()
	p.Reference = "sale:7d3c"

	created, err := Orders{DB: db}.CreateOrder(context.Background(), p)
	require.NoError(t, err)
	require.False(t, created.Replayed)
	require.Contains(t, db.queries[0], "WHERE reference")
	require.True(t, db.tx.committed)
}

func TestOrdersCreateRepeatedReferenceReturnsStoredOrder(t *testing.T) {
	db := &fakeDB{rows: map[string]fakeRow{
		"WHERE reference":    {values: []any{"stored-uuid", "ORD-20260309-000041"}},
		"nextval":            {values: []any{int64(42)}},
		"INSERT INTO orders": {values: []any{"order-uuid"}},
	}}
	p := samplePayload()
	p.Reference = "sale:7d3c"

	created, err := Orders{DB: db}.CreateOrder(context.Background(), p)
	require.NoError(t, err)
	require.True(t, created.Replayed)
	require.Equal(t, "stored-uuid", created.ID)
	require.Equal(t, "ORD-20260309-000041", created.OrderNumber)
	require.Len(t, db.queries, 1)
	require.Zero(t, db.tx.batched)
	require.False(t, db.tx.committed)
}

func TestOrdersByID(t *testing.T) {
	created := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	db := &fakeDB{
		rows: map[string]fakeRow{"FROM orders": {values: []any{
			productID, "ORD-20260309-000042", "pos", "paid",
			"", "till-1", []byte(`{"name":"Ana"}`), []byte(nil),
			"", "", []byte(`{"kind":"fixed","value":20}`),
			"200", "20", "0", "0", "180",
			"$", "", "sale:till-1-a", created,
		}}},
		sets: map[string][][]any{
			"FROM order_items":    {{productID, "", "MUG-1", "Mug", 2, "100", "base", "0", "200", ""}},
			"FROM order_payments": {{"cash", "180", ""}},
		},
	}
	rec, err := Orders{DB: db}.OrderByID(context.Background(), productID)
	require.NoError(t, err)
	require.Equal(t, order.ChannelPOS, rec.Channel)
	require.Equal(t, "Ana", rec.Customer.Name)
	require.Nil(t, rec.ShipTo)
	require.Equal(t, pricing.KindFixed, rec.OrderDiscount.Kind)
	require.True(t, rec.Totals.GrandTotal.Equal(decimal.NewFromInt(180)))
	require.Len(t, rec.Items, 1)
	require.Len(t, rec.Payments, 1)
	require.Equal(t, created, rec.CreatedAt)
	require.Equal(t, "sale:till-1-a", rec.Reference)
}

func TestOrdersByIDNotFound(t *testing.T) {
	_, err := Orders{DB: &fakeDB{}}.OrderByID(context.Background(), productID)
	require.ErrorIs(t, err, order.ErrOrderNotFound)
	_, err = Orders{DB: &fakeDB{}}.OrderByID(context.Background(), "x")
	require.ErrorIs(t, err, order.ErrOrderNotFound)
}
