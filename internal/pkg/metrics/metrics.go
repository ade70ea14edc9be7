// Package metrics holds the Prometheus collectors shared by the API and worker.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
	OutcomeStale   = "stale"
)

// Metrics holds all application metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	RequestDuration *prometheus.HistogramVec
	RequestTotal    *prometheus.CounterVec
	ErrorTotal      *prometheus.CounterVec

	// Backend
	BackendCalls   *prometheus.CounterVec
	BackendLatency *prometheus.HistogramVec

	// Queries
	Queries      *prometheus.CounterVec
	QueryLatency *prometheus.HistogramVec

	// Documents
	DocumentsProcessed *prometheus.CounterVec
	DocumentDuration   prometheus.Histogram
	DocumentPages      prometheus.Histogram

	// Cleanup
	ExpiredKeysPurged prometheus.Counter
	TempFilesRemoved  prometheus.Counter

	ActiveSessions prometheus.Gauge
}

// New creates the collectors and registers them on a private registry
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		RequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		ErrorTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "Total number of HTTP responses with status >= 400",
		}, []string{"method", "path", "status"}),

		BackendCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "calls_total",
			Help:      "Total number of backend calls",
		}, []string{"endpoint", "outcome"}),
		BackendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "call_duration_seconds",
			Help:      "Duration of backend calls",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),

		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "submitted_total",
			Help:      "Total number of submitted queries by type and outcome",
		}, []string{"type", "outcome"}),
		QueryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "End-to-end query duration including formatting",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"type"}),

		DocumentsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "documents",
			Name:      "processed_total",
			Help:      "Total number of ingested documents by final status",
		}, []string{"status"}),
		DocumentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "documents",
			Name:      "processing_duration_seconds",
			Help:      "Time spent processing an uploaded document",
			Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		DocumentPages: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "documents",
			Name:      "pages",
			Help:      "Page count of ingested documents",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),

		ExpiredKeysPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "expired_keys_purged_total",
			Help:      "Total number of expired store entries removed",
		}),
		TempFilesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "temp_files_removed_total",
			Help:      "Total number of stale upload files removed",
		}),

		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Current number of dashboard sessions",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestDuration, m.RequestTotal, m.ErrorTotal,
		m.BackendCalls, m.BackendLatency,
		m.Queries, m.QueryLatency,
		m.DocumentsProcessed, m.DocumentDuration, m.DocumentPages,
		m.ExpiredKeysPurged, m.TempFilesRemoved,
		m.ActiveSessions,
	)

	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(method, path, status string, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
	m.RequestTotal.WithLabelValues(method, path, status).Inc()
	if failed {
		m.ErrorTotal.WithLabelValues(method, path, status).Inc()
	}
}

func (m *Metrics) ObserveBackend(endpoint, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.BackendCalls.WithLabelValues(endpoint, outcome).Inc()
	m.BackendLatency.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Metrics) ObserveQuery(queryType, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Queries.WithLabelValues(queryType, outcome).Inc()
	if outcome == OutcomeSuccess {
		m.QueryLatency.WithLabelValues(queryType).Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveDocument(status string, pages int, d time.Duration) {
	if m == nil {
		return
	}
	m.DocumentsProcessed.WithLabelValues(status).Inc()
	m.DocumentDuration.Observe(d.Seconds())
	if pages > 0 {
		m.DocumentPages.Observe(float64(pages))
	}
}

func (m *Metrics) ObserveCleanup(purgedKeys int64, removedFiles int) {
	if m == nil {
		return
	}
	m.ExpiredKeysPurged.Add(float64(purgedKeys))
	m.TempFilesRemoved.Add(float64(removedFiles))
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}
