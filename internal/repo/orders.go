package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/toko-pos/internal/order"
	"github.com/noah-isme/toko-pos/internal/payment"
	"github.com/noah-isme/toko-pos/internal/pricing"
)

// Orders persists orders with their items and payments in one transaction.
type Orders struct {
	DB  TxDB
	Now func() time.Time
}

func (o Orders) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// CreateOrder implements order.Creator. A payload whose reference is already
// stored returns that order, marked replayed, and inserts nothing.
func (o Orders) CreateOrder(ctx context.Context, p order.Payload) (order.Created, error) {
	if o.DB == nil {
		return order.Created{}, errors.New("orders repo not configured")
	}
	customer, err := jsonOrNil(p.Customer, p.Customer != nil)
	if err != nil {
		return order.Created{}, fmt.Errorf("encode customer: %w", err)
	}
	shipTo, err := jsonOrNil(p.ShipTo, p.ShipTo != nil)
	if err != nil {
		return order.Created{}, fmt.Errorf("encode address: %w", err)
	}
	orderDiscount, err := jsonOrNil(p.OrderDiscount, p.OrderDiscount != nil)
	if err != nil {
		return order.Created{}, fmt.Errorf("encode order discount: %w", err)
	}
	var couponID any
	if validUUID(p.CouponID) {
		couponID = p.CouponID
	}

	tx, err := o.DB.Begin(ctx)
	if err != nil {
		return order.Created{}, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if p.Reference != "" {
		existing, found, err := orderByReference(ctx, tx, p.Reference)
		if err != nil || found {
			return existing, err
		}
	}

	var seq int64
	if err := tx.QueryRow(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq); err != nil {
		return order.Created{}, fmt.Errorf("next order number: %w", err)
	}
	now := o.now()
	created := order.Created{OrderNumber: order.FormatNumber(now, seq)}
	err = tx.QueryRow(ctx, `INSERT INTO orders (order_number, channel, status, session_id, device_id,
		customer, ship_to, coupon_id, coupon_code, order_discount,
		subtotal, discount, shipping, tax, grand_total, currency, notes, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		$11::numeric, $12::numeric, $13::numeric, $14::numeric, $15::numeric, $16, $17, $18, $19)
		ON CONFLICT (reference) DO NOTHING
		RETURNING id::text`,
		created.OrderNumber, string(p.Channel), p.Status(), nullableString(p.SessionID), nullableString(p.DeviceID),
		customer, shipTo, couponID, nullableString(p.CouponCode), orderDiscount,
		p.Totals.Subtotal.String(), p.Totals.Discount.String(), p.Totals.Shipping.String(),
		p.Totals.Tax.String(), p.Totals.GrandTotal.String(), p.Currency, p.Notes, nullableString(p.Reference), now,
	).Scan(&created.ID)
	if errors.Is(err, pgx.ErrNoRows) && p.Reference != "" {
		// A concurrent insert committed the same reference first.
		existing, found, lookupErr := orderByReference(ctx, tx, p.Reference)
		if lookupErr != nil {
			return order.Created{}, lookupErr
		}
		if found {
			return existing, nil
		}
	}
	if err != nil {
		return order.Created{}, fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for i, it := range p.Items {
		batch.Queue(`INSERT INTO order_items (order_id, position, product_id, variant_id, sku, title,
			quantity, unit_price, price_source, line_discount, line_total, note)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10::numeric, $11::numeric, $12)`,
			created.ID, i, it.ProductID, nullableString(it.VariantID), it.SKU, it.Title,
			it.Quantity, it.UnitPrice.String(), string(it.PriceSource), it.LineDiscount.String(), it.LineTotal.String(), it.Note)
	}
	for i, t := range p.Payments {
		batch.Queue(`INSERT INTO order_payments (order_id, position, method, amount, reference)
			VALUES ($1, $2, $3, $4::numeric, $5)`,
			created.ID, i, t.Method, t.Amount.String(), t.Reference)
	}
	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return order.Created{}, fmt.Errorf("insert order lines: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return order.Created{}, fmt.Errorf("insert order lines: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return order.Created{}, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

func orderByReference(ctx context.Context, q DBTX, reference string) (order.Created, bool, error) {
	var c order.Created
	err := q.QueryRow(ctx, `SELECT id::text, order_number FROM orders WHERE reference = $1`, reference).
		Scan(&c.ID, &c.OrderNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return order.Created{}, false, nil
	}
	if err != nil {
		return order.Created{}, false, fmt.Errorf("find order by reference: %w", err)
	}
	c.Replayed = true
	return c, true, nil
}

// OrderByID implements order.Reader.
func (o Orders) OrderByID(ctx context.Context, id string) (order.Record, error) {
	if o.DB == nil {
		return order.Record{}, errors.New("orders repo not configured")
	}
	if !validUUID(id) {
		return order.Record{}, order.ErrOrderNotFound
	}
	var (
		rec                                   order.Record
		channel                               string
		customer, shipTo, orderDiscount       []byte
		subtotal, discount, shipping, tax, gt string
	)
	err := o.DB.QueryRow(ctx, `SELECT id::text, order_number, channel, status,
		coalesce(session_id, ''), coalesce(device_id, ''), customer, ship_to,
		coalesce(coupon_id::text, ''), coalesce(coupon_code, ''), order_discount,
		subtotal::text, discount::text, shipping::text, tax::text, grand_total::text,
		currency, notes, coalesce(reference, ''), created_at
		FROM orders WHERE id = $1`, id).Scan(
		&rec.ID, &rec.OrderNumber, &channel, &rec.Status,
		&rec.SessionID, &rec.DeviceID, &customer, &shipTo,
		&rec.CouponID, &rec.CouponCode, &orderDiscount,
		&subtotal, &discount, &shipping, &tax, &gt,
		&rec.Currency, &rec.Notes, &rec.Reference, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.Record{}, order.ErrOrderNotFound
		}
		return order.Record{}, err
	}
	rec.Channel = order.Channel(channel)
	if err := decodeOptional(customer, &rec.Customer); err != nil {
		return order.Record{}, fmt.Errorf("decode customer: %w", err)
	}
	if err := decodeOptional(shipTo, &rec.ShipTo); err != nil {
		return order.Record{}, fmt.Errorf("decode address: %w", err)
	}
	if err := decodeOptional(orderDiscount, &rec.OrderDiscount); err != nil {
		return order.Record{}, fmt.Errorf("decode order discount: %w", err)
	}
	amounts := make([]pricing.Money, 0, 5)
	for _, raw := range []string{subtotal, discount, shipping, tax, gt} {
		d, err := parseMoney(raw)
		if err != nil {
			return order.Record{}, err
		}
		amounts = append(amounts, d)
	}
	rec.Totals = pricing.Totals{
		Subtotal:   amounts[0],
		Discount:   amounts[1],
		Shipping:   amounts[2],
		Tax:        amounts[3],
		GrandTotal: amounts[4],
	}

	if rec.Items, err = o.items(ctx, rec.ID); err != nil {
		return order.Record{}, err
	}
	if rec.Payments, err = o.payments(ctx, rec.ID); err != nil {
		return order.Record{}, err
	}
	return rec, nil
}

func (o Orders) items(ctx context.Context, orderID string) ([]order.Item, error) {
	rows, err := o.DB.Query(ctx, `SELECT product_id::text, coalesce(variant_id::text, ''), sku, title, quantity,
		unit_price::text, price_source, line_discount::text, line_total::text, note
		FROM order_items WHERE order_id = $1 ORDER BY position`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()
	var items []order.Item
	for rows.Next() {
		var (
			it                        order.Item
			source                    string
			unit, lineDisc, lineTotal string
		)
		if err := rows.Scan(&it.ProductID, &it.VariantID, &it.SKU, &it.Title, &it.Quantity,
			&unit, &source, &lineDisc, &lineTotal, &it.Note); err != nil {
			return nil, err
		}
		it.PriceSource = pricing.PriceSource(source)
		if it.UnitPrice, err = parseMoney(unit); err != nil {
			return nil, err
		}
		if it.LineDiscount, err = parseMoney(lineDisc); err != nil {
			return nil, err
		}
		if it.LineTotal, err = parseMoney(lineTotal); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (o Orders) payments(ctx context.Context, orderID string) ([]payment.Tender, error) {
	rows, err := o.DB.Query(ctx, `SELECT method, amount::text, reference
		FROM order_payments WHERE order_id = $1 ORDER BY position`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order payments: %w", err)
	}
	defer rows.Close()
	var tenders []payment.Tender
	for rows.Next() {
		var (
			t      payment.Tender
			amount string
		)
		if err := rows.Scan(&t.Method, &amount, &t.Reference); err != nil {
			return nil, err
		}
		if t.Amount, err = parseMoney(amount); err != nil {
			return nil, err
		}
		tenders = append(tenders, t)
	}
	return tenders, rows.Err()
}

func decodeOptional[T any](raw []byte, dst **T) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*dst = &v
	return nil
}
