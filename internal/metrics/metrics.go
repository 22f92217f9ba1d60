// Package metrics exposes Prometheus collectors for the exchange.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "exchange"

// Metrics is the set of collectors the exchange updates.
type Metrics struct {
	// Ticks counts simulated market ticks applied by catch-up.
	Ticks prometheus.Counter
	// CatchUpDuration observes how long one catch-up takes.
	CatchUpDuration prometheus.Histogram
	// Orders counts user orders by side: long, short or close.
	Orders *prometheus.CounterVec
	// AutoSells counts trades force-closed by the auto-sell scan.
	AutoSells prometheus.Counter
	// AutoSellFailures counts trades the scan failed to close.
	AutoSellFailures prometheus.Counter
	// StockPrice is the latest mid price per stock code.
	StockPrice *prometheus.GaugeVec

	// HTTPRequests counts API requests by method, route and status.
	HTTPRequests *prometheus.CounterVec
	// HTTPRequestDuration observes API latency by route.
	HTTPRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "ticks_total",
			Help:      "Total simulated market ticks applied",
		}),
		CatchUpDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "catch_up_duration_seconds",
			Help:      "Time spent replaying missed ticks",
			Buckets:   prometheus.DefBuckets,
		}),
		Orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "total",
			Help:      "Total user orders executed",
		}, []string{"side"}),
		AutoSells: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "auto_sells_total",
			Help:      "Total trades closed by auto-sell",
		}),
		AutoSellFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "auto_sell_failures_total",
			Help:      "Total auto-sell closes that failed",
		}),
		StockPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "stock_price",
			Help:      "Latest mid price per stock",
		}, []string{"code"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.Ticks,
		m.CatchUpDuration,
		m.Orders,
		m.AutoSells,
		m.AutoSellFailures,
		m.StockPrice,
		m.HTTPRequests,
		m.HTTPRequestDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
