package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DomainMetrics counts pricing and transaction outcomes. A nil *DomainMetrics
// records nothing, so services can hold one unconditionally.
type DomainMetrics struct {
	CouponTotal      *prometheus.CounterVec
	CheckoutTotal    *prometheus.CounterVec
	SaleTransitions  *prometheus.CounterVec
	TenderedAmount   *prometheus.CounterVec
	OrderGrandTotal  *prometheus.HistogramVec
	ReceiptsTotal    *prometheus.CounterVec
	RateLimitedTotal *prometheus.CounterVec
	BreakerTotal     *prometheus.CounterVec
}

// NewDomainMetrics registers the domain collectors on reg.
func NewDomainMetrics(namespace string, reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &DomainMetrics{
		CouponTotal: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_apply_total",
			Help:      "Coupon apply attempts by outcome.",
		}, []string{"result"})),
		CheckoutTotal: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Storefront checkout submissions by outcome.",
		}, []string{"result"})),
		SaleTransitions: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sale_transitions_total",
			Help:      "POS sale lifecycle transitions.",
		}, []string{"from", "to"})),
		TenderedAmount: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tendered_amount_total",
			Help:      "Sum of payment amounts recorded on completed sales, by method.",
		}, []string{"method"})),
		OrderGrandTotal: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_grand_total",
			Help:      "Grand total of persisted orders.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"channel"})),
		ReceiptsTotal: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipts_issued_total",
			Help:      "Receipts issued by the worker.",
		}, []string{"channel"})),
		RateLimitedTotal: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by a rate limiter.",
		}, []string{"scope"})),
		BreakerTotal: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transition_total",
			Help:      "Circuit breaker state transitions by target.",
		}, []string{"target", "from", "to"})),
	}
}

// Coupon records an apply attempt outcome such as applied, not_found or minimum.
func (m *DomainMetrics) Coupon(result string) {
	if m == nil {
		return
	}
	m.CouponTotal.WithLabelValues(result).Inc()
}

// Checkout records a checkout outcome.
func (m *DomainMetrics) Checkout(result string) {
	if m == nil {
		return
	}
	m.CheckoutTotal.WithLabelValues(result).Inc()
}

// Transition records a sale moving between lifecycle states.
func (m *DomainMetrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.SaleTransitions.WithLabelValues(from, to).Inc()
}

// Tendered adds a completed payment amount.
func (m *DomainMetrics) Tendered(method string, amount float64) {
	if m == nil {
		return
	}
	m.TenderedAmount.WithLabelValues(method).Add(amount)
}

// Order observes a persisted order's grand total.
func (m *DomainMetrics) Order(channel string, grandTotal float64) {
	if m == nil {
		return
	}
	m.OrderGrandTotal.WithLabelValues(channel).Observe(grandTotal)
}

// Receipt counts an issued receipt.
func (m *DomainMetrics) Receipt(channel string) {
	if m == nil {
		return
	}
	m.ReceiptsTotal.WithLabelValues(channel).Inc()
}

// RateLimited counts a rejected request.
func (m *DomainMetrics) RateLimited(scope string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(scope).Inc()
}

// BreakerTransition counts a circuit breaker state change.
func (m *DomainMetrics) BreakerTransition(target, from, to string) {
	if m == nil {
		return
	}
	m.BreakerTotal.WithLabelValues(target, from, to).Inc()
}
