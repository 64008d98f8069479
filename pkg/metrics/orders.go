package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics tracks checkout and order lifecycle activity.
type OrderMetrics struct {
	ordersCreated  *prometheus.CounterVec
	orderValue     *prometheus.HistogramVec
	orderItems     prometheus.Histogram
	transitions    *prometheus.CounterVec
	stockConflicts *prometheus.CounterVec
	cartAdds       prometheus.Counter
}

// NewOrderMetrics registers order metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	m := &OrderMetrics{
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shop",
			Name:      "orders_created_total",
			Help:      "Orders created through checkout.",
		}, []string{"payment_method"}),
		orderValue: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shop",
			Name:      "order_value_minor_units",
			Help:      "Order total amount in minor currency units.",
			Buckets:   prometheus.ExponentialBuckets(10_000, 4, 10),
		}, []string{"currency"}),
		orderItems: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shop",
			Name:      "order_item_count",
			Help:      "Number of line items per order.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shop",
			Name:      "order_transitions_total",
			Help:      "Order status transitions by outcome.",
		}, []string{"from", "to", "outcome"}),
		stockConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shop",
			Name:      "stock_conflicts_total",
			Help:      "Conditional stock decrements rejected for insufficient stock.",
		}, []string{"source"}),
		cartAdds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shop",
			Name:      "cart_items_added_total",
			Help:      "Cart add-item operations.",
		}),
	}
	reg.MustRegister(m.ordersCreated, m.orderValue, m.orderItems, m.transitions, m.stockConflicts, m.cartAdds)
	return m
}

// ObserveOrderCreated records a completed checkout.
func (m *OrderMetrics) ObserveOrderCreated(paymentMethod, currency string, totalCents int64, items int) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.WithLabelValues(normalizeLabel(paymentMethod)).Inc()
	m.orderValue.WithLabelValues(normalizeLabel(currency)).Observe(float64(totalCents))
	m.orderItems.Observe(float64(items))
}

// IncTransition counts a transition attempt; outcome is applied, noop, rejected or conflict.
func (m *OrderMetrics) IncTransition(from, to, outcome string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to), normalizeLabel(outcome)).Inc()
}

// IncStockConflict counts an insufficient stock rejection.
func (m *OrderMetrics) IncStockConflict(source string) {
	if m == nil || m.stockConflicts == nil {
		return
	}
	m.stockConflicts.WithLabelValues(normalizeLabel(source)).Inc()
}

func (m *OrderMetrics) IncCartAdd() {
	if m == nil || m.cartAdds == nil {
		return
	}
	m.cartAdds.Inc()
}
