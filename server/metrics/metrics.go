// Package metrics holds the Prometheus collectors for the service. Every
// Metrics value owns its own registry so tests can build as many as they like.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics encapsulates Prometheus metrics for the server.
type Metrics struct {
	registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  *prometheus.GaugeVec
	ErrorsTotal     *prometheus.CounterVec
	RateLimitHits   *prometheus.CounterVec

	// Grammar pipeline
	ChecksTotal  *prometheus.CounterVec
	ModelLatency *prometheus.HistogramVec
	ModelErrors  *prometheus.CounterVec
	QueueDepth   prometheus.Gauge

	// Persistence
	HistoryPurged prometheus.Counter
}

// NewMetrics creates a new Metrics instance with a custom registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "koreksi_http_requests_total",
				Help: "Total number of HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "koreksi_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		ActiveRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "koreksi_http_active_requests",
				Help: "Number of currently active HTTP requests by method",
			},
			[]string{"method"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "koreksi_errors_total",
				Help: "Total number of errors by type",
			},
			[]string{"type"},
		),
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "koreksi_rate_limit_hits_total",
				Help: "Total number of rate limit hits by user",
			},
			[]string{"user"},
		),
		ChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "koreksi_grammar_checks_total",
				Help: "Grammar checks by outcome (success or error type)",
			},
			[]string{"outcome"},
		),
		ModelLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "koreksi_model_latency_seconds",
				Help:    "Latency of model provider calls",
				Buckets: []float64{.25, .5, 1, 2, 4, 8, 16, 32},
			},
			[]string{"provider"},
		),
		ModelErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "koreksi_model_errors_total",
				Help: "Failed model provider calls",
			},
			[]string{"provider"},
		),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "koreksi_check_queue_depth",
			Help: "Grammar checks currently holding a queue slot",
		}),
		HistoryPurged: factory.NewCounter(prometheus.CounterOpts{
			Name: "koreksi_history_purged_total",
			Help: "History records removed by the expiry sweeper",
		}),
	}

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m.RequestsTotal.WithLabelValues("/health", "200").Add(0)
	m.ChecksTotal.WithLabelValues("success").Add(0)

	return m
}

// Registry exposes the underlying registry for collectors owned elsewhere,
// such as the circuit breaker state gauge.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns a handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: false,
	})
}
