// Package metrics provides Prometheus metrics collection for Glow.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "glow"

// Collector holds all Prometheus metrics for Glow.
type Collector struct {
	// HTTP metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// List query metrics
	QueriesTotal  *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryRows     *prometheus.HistogramVec

	// Portal fetches by source: api, fallback or empty
	FetchesTotal  *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec

	// Schema metrics
	SchemaReloads      prometheus.Counter
	SchemaReloadErrors prometheus.Counter
	SchemaModules      prometheus.Gauge

	Sessions prometheus.Gauge
}

// New creates a collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),

		QueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "list_queries_total",
				Help:      "Total number of list queries by module and outcome",
			},
			[]string{"module", "outcome"},
		),
		QueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "list_query_duration_seconds",
				Help:      "List query evaluation time in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
			},
			[]string{"module"},
		),
		QueryRows: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "list_query_matched_rows",
				Help:      "Rows matching search and filters before pagination",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"module"},
		),

		FetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "portal_fetches_total",
				Help:      "Portal fetches by resource and the source that answered",
			},
			[]string{"resource", "source"},
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "portal_fetch_duration_seconds",
				Help:      "Portal fetch duration in seconds, fallback included",
				Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"source"},
		),

		SchemaReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schema_reloads_total",
				Help:      "Total number of successful module schema reloads",
			},
		),
		SchemaReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schema_reload_errors_total",
				Help:      "Total number of rejected module schema reloads",
			},
		),
		SchemaModules: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "schema_modules",
				Help:      "Number of modules in the active schema",
			},
		),

		Sessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions",
				Help:      "Number of live dashboard sessions",
			},
		),
	}
}

// RecordRequest records a completed HTTP request.
func (c *Collector) RecordRequest(method, route string, status int, d time.Duration) {
	c.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordQuery records one list query evaluation.
func (c *Collector) RecordQuery(module string, matched int, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.QueriesTotal.WithLabelValues(module, outcome).Inc()
	if err == nil {
		c.QueryDuration.WithLabelValues(module).Observe(d.Seconds())
		c.QueryRows.WithLabelValues(module).Observe(float64(matched))
	}
}

// RecordFetch records which source answered a portal fetch.
func (c *Collector) RecordFetch(resource, source string, d time.Duration) {
	c.FetchesTotal.WithLabelValues(resource, source).Inc()
	c.FetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

// RecordSchemaReload records a schema reload attempt.
func (c *Collector) RecordSchemaReload(modules int, err error) {
	if err != nil {
		c.SchemaReloadErrors.Inc()
		return
	}
	c.SchemaReloads.Inc()
	c.SchemaModules.Set(float64(modules))
}
