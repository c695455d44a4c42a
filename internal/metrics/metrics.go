// Package metrics exposes Prometheus collectors for gateway decisions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's Prometheus collectors on a dedicated
// registry so tests can construct isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal        *prometheus.CounterVec
	RequestDuration      prometheus.Histogram
	RateLimitRejections  prometheus.Counter
	SchemaBlocks         *prometheus.CounterVec
	AuditQueueDrops      prometheus.Counter
}

// New creates and registers the gateway collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Gateway requests by terminal outcome.",
		}, []string{"outcome"}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Full pipeline latency.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
		RateLimitRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_ratelimit_rejections_total",
			Help: "Requests rejected by the rate limiter.",
		}),
		SchemaBlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_schema_blocks_total",
			Help: "Operations blocked by the schema guard, by rule.",
		}, []string{"rule"}),
		AuditQueueDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_audit_queue_drops_total",
			Help: "Audit records dropped because the background queue was full.",
		}),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RateLimitRejections,
		m.SchemaBlocks,
		m.AuditQueueDrops,
	)
	return m
}

// Handler returns an HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
