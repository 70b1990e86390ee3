// Package metrics exposes Prometheus collectors for the budget service.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector on its own registry so tests and multiple
// servers in one process do not collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	EntriesAdded    *prometheus.CounterVec
	EntriesRemoved  *prometheus.CounterVec
	ActiveSessions  prometheus.Gauge
	PublishErrors   *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		EntriesAdded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budget_entries_added_total",
				Help: "Total number of ledger entries added",
			},
			[]string{"category"},
		),
		EntriesRemoved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budget_entries_removed_total",
				Help: "Total number of removal requests, by outcome",
			},
			[]string{"category", "result"},
		),
		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "budget_active_sessions",
				Help: "Number of sessions currently holding a ledger",
			},
		),
		PublishErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budget_event_publish_errors_total",
				Help: "Total number of ledger events that could not be published",
			},
			[]string{"type"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budget_http_requests_total",
				Help: "Total number of HTTP requests served",
			},
			[]string{"method", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "budget_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1},
			},
			[]string{"method"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(method string, status int, seconds float64) {
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(seconds)
}

// RemovalResult labels a removal outcome.
func RemovalResult(removed bool) string {
	if removed {
		return "removed"
	}
	return "not_found"
}
