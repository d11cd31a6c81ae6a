// Package metrics exposes session activity as Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "replaytrader"

// Metrics groups the session collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	ticks       prometheus.Counter
	orders      *prometheus.CounterVec
	trades      *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	cursor      prometheus.Gauge
	equity      prometheus.Gauge
	cash        prometheus.Gauge
	marginUsed  prometheus.Gauge
	pending     prometheus.Gauge
	subscribers prometheus.Gauge
}

// New builds the collectors and registers them with reg. Passing nil
// skips registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Bars replayed.",
		}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Order submissions by kind and outcome.",
		}, []string{"kind", "status"}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trade_records_total",
			Help:      "Trade records by type and reason.",
		}, []string{"type", "reason"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Rejected orders by cause.",
		}, []string{"cause"}),
		cursor: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "replay_cursor",
			Help:      "Current replay bar index.",
		}),
		equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "account_equity",
			Help:      "Cash plus floating PnL.",
		}),
		cash: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "account_cash",
			Help:      "Account cash.",
		}),
		marginUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "account_margin_used",
			Help:      "Margin held at current marks.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_orders",
			Help:      "Resting orders in the book.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_subscribers",
			Help:      "Open snapshot subscriptions.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ticks, m.orders, m.trades, m.rejections,
			m.cursor, m.equity, m.cash, m.marginUsed, m.pending, m.subscribers)
	}
	return m
}

func (m *Metrics) Tick(cursor int) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.cursor.Set(float64(cursor))
}

func (m *Metrics) Cursor(cursor int) {
	if m == nil {
		return
	}
	m.cursor.Set(float64(cursor))
}

func (m *Metrics) Order(kind, status string) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) Trade(typ, reason string) {
	if m == nil {
		return
	}
	m.trades.WithLabelValues(typ, reason).Inc()
}

func (m *Metrics) Rejection(cause string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(cause).Inc()
}

// Account sets the account gauges.
func (m *Metrics) Account(cash, equity, marginUsed float64, pending int) {
	if m == nil {
		return
	}
	m.cash.Set(cash)
	m.equity.Set(equity)
	m.marginUsed.Set(marginUsed)
	m.pending.Set(float64(pending))
}

func (m *Metrics) Subscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}
