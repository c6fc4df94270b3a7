package coupon_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pos/internal/coupon"
	"github.com/noah-isme/toko-pos/internal/pricing"
)

type stubStore struct {
	coupons map[string]coupon.Coupon
	lookups []string
}

func (s *stubStore) CouponByCode(_ context.Context, code string) (coupon.Coupon, error) {
	s.lookups = append(s.lookups, code)
	c, ok := s.coupons[code]
	if !ok {
		return coupon.Coupon{}, coupon.ErrCouponNotFound
	}
	return c, nil
}

func m(v string) pricing.Money { return decimal.RequireFromString(v) }

func newService() (*coupon.Service, *stubStore) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Hour)
	store := &stubStore{coupons: map[string]coupon.Coupon{
		"TENOFF": {ID: "c1", Code: "TENOFF", Kind: pricing.KindPercentage, Value: m("10"), Active: true},
		"BIGFIX": {ID: "c2", Code: "BIGFIX", Kind: pricing.KindFixed, Value: m("700"), Active: true},
		"MIN500": {ID: "c3", Code: "MIN500", Kind: pricing.KindFixed, Value: m("50"), MinimumAmount: m("500"), Active: true},
		"OFF":    {ID: "c4", Code: "OFF", Kind: pricing.KindFixed, Value: m("5"), Active: false},
		"OLD":    {ID: "c5", Code: "OLD", Kind: pricing.KindFixed, Value: m("5"), Active: true, ExpiresAt: &expired},
		"BROKEN": {ID: "c6", Code: "BROKEN", Kind: pricing.KindPercentage, Value: m("150"), Active: true},
	}}
	return &coupon.Service{Store: store, Now: func() time.Time { return now }}, store
}

func TestEvaluateNormalisesCode(t *testing.T) {
	svc, store := newService()
	applied, err := svc.Evaluate(context.Background(), "  tenoff ", m("1000"))
	require.NoError(t, err)
	require.Equal(t, []string{"TENOFF"}, store.lookups)
	require.Equal(t, "TENOFF", applied.Code)
	require.True(t, applied.Amount.Equal(m("100")))
	require.Equal(t, pricing.KindPercentage, applied.Kind)
}

func TestEvaluateClampsFixedCoupon(t *testing.T) {
	svc, _ := newService()
	applied, err := svc.Evaluate(context.Background(), "BIGFIX", m("500"))
	require.NoError(t, err)
	require.True(t, applied.Amount.Equal(m("500")))
}

func TestEvaluateFailures(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	cases := []struct {
		code string
		sub  string
		want error
	}{
		{"", "10", coupon.ErrCouponNotFound},
		{"missing", "10", coupon.ErrCouponNotFound},
		{"off", "10", coupon.ErrCouponInactive},
		{"old", "10", coupon.ErrCouponInactive},
		{"broken", "10", coupon.ErrCouponInactive},
		{"min500", "499.99", coupon.ErrMinimumAmountNotMet},
	}
	for _, tc := range cases {
		_, err := svc.Evaluate(ctx, tc.code, m(tc.sub))
		require.Truef(t, errors.Is(err, tc.want), "code %q: got %v", tc.code, err)
	}

	applied, err := svc.Evaluate(ctx, "min500", m("500"))
	require.NoError(t, err)
	require.True(t, applied.Amount.Equal(m("50")))
}

func TestAppliedSourceRechecksMinimum(t *testing.T) {
	applied := &coupon.Applied{Code: "MIN500", Kind: pricing.KindFixed, Value: m("50"), MinimumAmount: m("500")}
	lines := []pricing.Line{{ProductID: "p", Quantity: 1, UnitPrice: m("400")}}
	tot := pricing.Compute(lines, applied.Source(), pricing.Settings{})
	require.True(t, tot.Discount.IsZero())

	var none *coupon.Applied
	tot = pricing.Compute(lines, none.Source(), pricing.Settings{})
	require.True(t, tot.Discount.IsZero())
}
