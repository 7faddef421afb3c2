package elementorder

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Order outcomes recorded by Metrics
const (
	OutcomeAccepted     = "accepted"
	OutcomeSkipped      = "skipped"
	OutcomeParseError   = "parse_error"
	OutcomeInvalid      = "invalid"
	OutcomeNotFillable  = "not_fillable"
	OutcomeCheckFailure = "check_failure"
)

// Metrics holds the pipeline collectors on a private registry
type Metrics struct {
	registry        *prometheus.Registry
	OrdersProcessed *prometheus.CounterVec
	FetchErrors     prometheus.Counter
	FetchDuration   prometheus.Histogram
	CheckDuration   prometheus.Histogram
	OrdersQueued    prometheus.Counter
	SubmittedCalls  *prometheus.CounterVec
	LastFetchCursor prometheus.Gauge
	ExchangeEvents  *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		OrdersProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "element_orders_processed_total",
				Help: "Fetched orders by processing outcome",
			},
			[]string{"kind", "outcome"},
		),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "element_fetch_errors_total",
			Help: "Failed order list requests",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "element_fetch_duration_seconds",
			Help:    "Order list request latency",
			Buckets: prometheus.DefBuckets,
		}),
		CheckDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "element_fillability_check_duration_seconds",
			Help:    "Fillability check latency",
			Buckets: prometheus.DefBuckets,
		}),
		OrdersQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "element_orders_queued_total",
			Help: "Orders pushed to the order sink",
		}),
		SubmittedCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "element_submitted_calls_total",
				Help: "Exchange transactions sent, by method",
			},
			[]string{"method"},
		),
		LastFetchCursor: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "element_fetch_cursor_seconds",
			Help: "Creation time of the newest fetched order",
		}),
		ExchangeEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "element_exchange_events_total",
				Help: "Decoded exchange events, by name",
			},
			[]string{"event"},
		),
	}

	m.registry.MustRegister(
		m.OrdersProcessed,
		m.FetchErrors,
		m.FetchDuration,
		m.CheckDuration,
		m.OrdersQueued,
		m.SubmittedCalls,
		m.LastFetchCursor,
		m.ExchangeEvents,
	)
	return m
}

// Registry returns the registry the collectors are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the registry for scraping
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeOrder(kind OrderKind, outcome string) {
	m.OrdersProcessed.WithLabelValues(kind.String(), outcome).Inc()
}

func (m *Metrics) observeSince(h prometheus.Histogram, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
