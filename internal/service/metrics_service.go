package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/supervisi-api/internal/models"
)

const metricsNamespace = "supervisi"

// MetricsService owns the Prometheus registry and keeps running totals for the summary endpoint.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	httpDuration *prometheus.HistogramVec
	httpTotal    *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	cacheLatency prometheus.Histogram
	reports      *prometheus.CounterVec
	exports      *prometheus.CounterVec
	exportTime   *prometheus.HistogramVec

	requests         atomic.Uint64
	requestNanos     atomic.Uint64
	cacheHits        atomic.Uint64
	cacheMisses      atomic.Uint64
	reportsGenerated atomic.Uint64
	exportsDone      atomic.Uint64
	exportsFailed    atomic.Uint64
}

// NewMetricsService registers the application collectors on a private registry.
func NewMetricsService() *MetricsService {
	m := &MetricsService{registry: prometheus.NewRegistry()}

	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	m.httpTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "route", "status"})
	m.cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "cache_lookups_total",
		Help:      "Cache lookups partitioned by result.",
	}, []string{"result"})
	m.cacheLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "cache_latency_seconds",
		Help:      "Latency of cache reads and writes.",
		Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5},
	})
	m.reports = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "reports_generated_total",
		Help:      "Reports produced by the aggregator, by recommendation tier.",
	}, []string{"tier"})
	m.exports = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "report_exports_total",
		Help:      "Report export jobs by format and final status.",
	}, []string{"format", "status"})
	m.exportTime = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "report_export_duration_seconds",
		Help:      "Time to render and store an export.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"format"})

	m.registry.MustRegister(
		m.httpDuration, m.httpTotal, m.cacheLookups, m.cacheLatency, m.reports, m.exports, m.exportTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
	return m
}

// Handler exposes the Prometheus scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpDuration.WithLabelValues(method, route, code).Observe(d.Seconds())
	m.httpTotal.WithLabelValues(method, route, code).Inc()
	m.requests.Add(1)
	m.requestNanos.Add(uint64(d.Nanoseconds()))
}

// RecordCacheLookup records a cache read outcome.
func (m *MetricsService) RecordCacheLookup(hit bool, d time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(d.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		m.cacheHits.Add(1)
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
	m.cacheMisses.Add(1)
}

// ObserveCacheWrite tracks cache write latency.
func (m *MetricsService) ObserveCacheWrite(d time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(d.Seconds())
}

// RecordReportGenerated counts an aggregated report by recommendation tier.
func (m *MetricsService) RecordReportGenerated(avg float64) {
	if m == nil {
		return
	}
	tier := "excellent"
	switch {
	case avg < 3:
		tier = "intensive"
	case avg < 4:
		tier = "progress"
	}
	m.reports.WithLabelValues(tier).Inc()
	m.reportsGenerated.Add(1)
}

// RecordExport counts a finished export job.
func (m *MetricsService) RecordExport(format models.ExportFormat, status models.ExportStatus, d time.Duration) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(string(format), string(status)).Inc()
	if status == models.ExportFinished {
		m.exportTime.WithLabelValues(string(format)).Observe(d.Seconds())
		m.exportsDone.Add(1)
		return
	}
	m.exportsFailed.Add(1)
}

// Snapshot returns the running totals.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{GeneratedAt: time.Now().UTC()}
	}
	hits, misses := m.cacheHits.Load(), m.cacheMisses.Load()
	requests := m.requests.Load()

	snap := models.SystemMetrics{
		RequestsTotal:    requests,
		CacheHits:        hits,
		CacheMisses:      misses,
		ReportsGenerated: m.reportsGenerated.Load(),
		ExportsCompleted: m.exportsDone.Load(),
		ExportsFailed:    m.exportsFailed.Load(),
		Goroutines:       runtime.NumGoroutine(),
		GeneratedAt:      time.Now().UTC(),
	}
	if lookups := hits + misses; lookups > 0 {
		snap.CacheHitRatio = float64(hits) / float64(lookups)
	}
	if requests > 0 {
		snap.AverageRequestDurationMs = float64(m.requestNanos.Load()) / float64(requests) / float64(time.Millisecond)
	}
	return snap
}
