// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "order_intake"

// Metrics is safe to use as a nil pointer, in which case nothing is recorded.
type Metrics struct {
	registry        *prometheus.Registry
	extractions     *prometheus.CounterVec
	warnings        prometheus.Counter
	invalidPatterns *prometheus.CounterVec
	exports         *prometheus.CounterVec
	requests        *prometheus.HistogramVec
}

// New registers all collectors, plus Go runtime and process collectors, on
// a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Documents processed, by text extraction method.",
		}, []string{"method"}),
		warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_warnings_total",
			Help:      "Non-fatal warnings raised while extracting text.",
		}),
		invalidPatterns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_patterns_total",
			Help:      "Rule patterns that failed to compile during extraction.",
		}, []string{"customer"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Table downloads, by format.",
		}, []string{"format"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		m.extractions,
		m.warnings,
		m.invalidPatterns,
		m.exports,
		m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveExtraction records one processed document.
func (m *Metrics) ObserveExtraction(method string, warnings int) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(method).Inc()
	m.warnings.Add(float64(warnings))
}

// ObserveInvalidPatterns records patterns that did not compile.
func (m *Metrics) ObserveInvalidPatterns(customer string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.invalidPatterns.WithLabelValues(customer).Add(float64(n))
}

// ObserveExport records one download.
func (m *Metrics) ObserveExport(format string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(format).Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
