// Package metrics provides Prometheus metrics collection for Stencil.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for Stencil.
type Collector struct {
	registry *prometheus.Registry

	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Auth metrics
	AuthFailures *prometheus.CounterVec

	// Content API metrics
	ContentReloads       prometheus.Counter
	ContentReloadErrors  prometheus.Counter
	ContentSchemasActive prometheus.Gauge

	// Webhook metrics
	WebhookDispatches *prometheus.CounterVec
}

// New creates a metrics collector on its own registry. Each collector
// owns its registry so several apps can coexist in one process.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := NewWithRegistry(reg)
	c.registry = reg
	return c
}

// Handler serves the collector's registry in the Prometheus exposition
// format. Collectors built over an external Registerer fall back to the
// process-wide default handler.
func (c *Collector) Handler() http.Handler {
	if c.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stencil",
				Name:      "requests_total",
				Help:      "Total number of requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "stencil",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "stencil",
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),

		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stencil",
				Name:      "auth_failures_total",
				Help:      "Total number of authentication failures",
			},
			[]string{"reason"},
		),

		ContentReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "stencil",
				Name:      "content_reloads_total",
				Help:      "Total number of content router rebuilds",
			},
		),
		ContentReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "stencil",
				Name:      "content_reload_errors_total",
				Help:      "Total number of failed content router rebuilds",
			},
		),
		ContentSchemasActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "stencil",
				Name:      "content_schemas_active",
				Help:      "Number of schemas currently routed on the content API",
			},
		),

		WebhookDispatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stencil",
				Name:      "webhook_dispatches_total",
				Help:      "Total number of webhook delivery attempts",
			},
			[]string{"outcome"},
		),
	}
}

// NormalizePath reduces label cardinality for dynamic content paths.
// Document IDs in /content/{schema}/{id} would otherwise explode the
// requests_total label set.
func NormalizePath(path string) string {
	if len(path) > 50 {
		return path[:50] + "..."
	}
	return path
}
