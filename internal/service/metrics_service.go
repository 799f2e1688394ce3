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

	"github.com/noah-isme/tutorhub-api/internal/models"
)

const metricsNamespace = "tutorhub"

// Enrollment attempt outcomes recorded by RecordEnrollment.
const (
	OutcomeEnrolled = "enrolled"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// runningMean accumulates a count and a total duration for the JSON summary.
type runningMean struct {
	count atomic.Uint64
	total atomic.Int64
}

func (r *runningMean) add(d time.Duration) {
	r.count.Add(1)
	r.total.Add(int64(d))
}

func (r *runningMean) millis() (uint64, float64) {
	n := r.count.Load()
	if n == 0 {
		return 0, 0
	}
	return n, float64(r.total.Load()) / float64(n) / float64(time.Millisecond)
}

// MetricsService owns a private Prometheus registry. Alongside the exported
// series it keeps plain counters so /metrics/summary can answer without
// scraping.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	httpLatency  *prometheus.HistogramVec
	httpRequests *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	cacheLatency *prometheus.HistogramVec
	cacheRatio   prometheus.Gauge
	storeLatency *prometheus.HistogramVec
	enrollments  *prometheus.CounterVec
	conflicts    *prometheus.CounterVec

	requests runningMean
	queries  runningMean
	hits     atomic.Uint64
	misses   atomic.Uint64
	enrolled atomic.Uint64
	rejected atomic.Uint64
	overlaps atomic.Uint64
}

// NewMetricsService builds the registry with HTTP, cache, store and domain
// series plus the standard Go runtime collector.
func NewMetricsService() *MetricsService {
	m := &MetricsService{
		registry: prometheus.NewRegistry(),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route template.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served by route template.",
		}, []string{"method", "route", "status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache reads split by result.",
		}, []string{"result"}),
		cacheLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "operation_seconds",
			Help:      "Latency of cache reads and writes.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}, []string{"op"}),
		cacheRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "hit_ratio",
			Help:      "Share of cache reads served from cache since start.",
		}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "store",
			Name:      "tx_duration_seconds",
			Help:      "Duration of write transactions by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		enrollments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "enrollment_attempts_total",
			Help:      "Enrollment attempts by outcome.",
		}, []string{"outcome"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "schedule_conflicts_total",
			Help:      "Overlapping schedules rejected, by the operation that found them.",
		}, []string{"source"}),
	}

	m.registry.MustRegister(
		m.httpLatency, m.httpRequests,
		m.cacheLookups, m.cacheLatency, m.cacheRatio,
		m.storeLatency, m.enrollments, m.conflicts,
		collectors.NewGoCollector(),
	)
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpLatency.WithLabelValues(method, route, code).Observe(duration.Seconds())
	m.httpRequests.WithLabelValues(method, route, code).Inc()
	m.requests.add(duration)
}

// RecordCacheOperation records a cache read and refreshes the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.WithLabelValues("get").Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
		m.hits.Add(1)
	} else {
		m.misses.Add(1)
	}
	m.cacheLookups.WithLabelValues(result).Inc()
	m.cacheRatio.Set(m.hitRatio())
}

// ObserveCacheWrite records the latency of a cache write.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.WithLabelValues("set").Observe(duration.Seconds())
}

// ObserveDBQuery records the duration of a store transaction named op.
func (m *MetricsService) ObserveDBQuery(op string, duration time.Duration) {
	if m == nil {
		return
	}
	m.storeLatency.WithLabelValues(op).Observe(duration.Seconds())
	m.queries.add(duration)
}

// RecordEnrollment counts one enrollment attempt.
func (m *MetricsService) RecordEnrollment(outcome string) {
	if m == nil {
		return
	}
	m.enrollments.WithLabelValues(outcome).Inc()
	switch outcome {
	case OutcomeEnrolled:
		m.enrolled.Add(1)
	case OutcomeRejected:
		m.rejected.Add(1)
	}
}

// RecordScheduleConflict counts an overlap rejected by source ("schedule" or "enrollment").
func (m *MetricsService) RecordScheduleConflict(source string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(source).Inc()
	m.overlaps.Add(1)
}

func (m *MetricsService) hitRatio() float64 {
	hits, misses := m.hits.Load(), m.misses.Load()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// Snapshot returns the counters behind /metrics/summary.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	requests, avgRequest := m.requests.millis()
	queries, avgQuery := m.queries.millis()

	return models.SystemMetrics{
		CacheHitRatio:            m.hitRatio(),
		CacheHits:                m.hits.Load(),
		CacheMisses:              m.misses.Load(),
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequest,
		DBQueryCount:             queries,
		AverageDBQueryDurationMs: avgQuery,
		EnrollmentsCreated:       m.enrolled.Load(),
		EnrollmentsRejected:      m.rejected.Load(),
		ScheduleConflicts:        m.overlaps.Load(),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
