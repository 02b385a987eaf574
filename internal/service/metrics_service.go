package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Roster fetch outcomes.
const (
	FetchOutcomeSuccess = "success"
	FetchOutcomeFailure = "failure"
	FetchOutcomeCached  = "cached"
)

// MetricsService encapsulates Prometheus instrumentation and provides a
// lightweight snapshot for the readiness endpoint.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	cacheLatency       prometheus.Observer
	cacheWrite         prometheus.Observer
	cacheHitRatio      prometheus.Gauge
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	rosterFetchSeconds *prometheus.HistogramVec
	rosterRecords      prometheus.Gauge
	storageOpDuration  *prometheus.HistogramVec
	activeViewers      prometheus.Gauge

	cacheHitCount   uint64
	cacheMissCount  uint64
	requestCount    uint64
	fetchCount      uint64
	fetchFailures   uint64
	lastRecordCount int64
}

// MetricsSnapshot is a compact view of the counters kept in process.
type MetricsSnapshot struct {
	RequestsTotal       uint64    `json:"requests_total"`
	CacheHits           uint64    `json:"cache_hits"`
	CacheMisses         uint64    `json:"cache_misses"`
	CacheHitRatio       float64   `json:"cache_hit_ratio"`
	RosterFetches       uint64    `json:"roster_fetches"`
	RosterFetchFailures uint64    `json:"roster_fetch_failures"`
	RosterRecords       int64     `json:"roster_records"`
	Goroutines          int       `json:"goroutines"`
	GeneratedAt         time.Time `json:"generated_at"`
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache writes",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	rosterFetchSeconds := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "roster_fetch_duration_seconds",
		Help:    "Duration of roster feed loads by outcome",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
	}, []string{"outcome"})

	rosterRecords := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roster_records",
		Help: "Number of records returned by the last successful roster load",
	})

	storageOpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "client_storage_operation_seconds",
		Help:    "Duration of client storage operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"store", "operation"})

	activeViewers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roster_active_viewers",
		Help: "Number of live per-tab view coordinators",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		rosterFetchSeconds, rosterRecords, storageOpDuration, activeViewers, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheHitRatio:      cacheHitRatio,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		rosterFetchSeconds: rosterFetchSeconds,
		rosterRecords:      rosterRecords,
		storageOpDuration:  storageOpDuration,
		activeViewers:      activeViewers,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveRosterFetch records one roster load. records is ignored unless the
// load succeeded.
func (m *MetricsService) ObserveRosterFetch(outcome string, records int, duration time.Duration) {
	if m == nil {
		return
	}
	m.rosterFetchSeconds.WithLabelValues(outcome).Observe(duration.Seconds())
	atomic.AddUint64(&m.fetchCount, 1)
	switch outcome {
	case FetchOutcomeFailure:
		atomic.AddUint64(&m.fetchFailures, 1)
	default:
		m.rosterRecords.Set(float64(records))
		atomic.StoreInt64(&m.lastRecordCount, int64(records))
	}
}

// ObserveStorageOperation records the latency of a client storage call.
func (m *MetricsService) ObserveStorageOperation(store, operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.storageOpDuration.WithLabelValues(store, operation).Observe(duration.Seconds())
}

// SetActiveViewers publishes the number of live coordinators.
func (m *MetricsService) SetActiveViewers(n int) {
	if m == nil {
		return
	}
	m.activeViewers.Set(float64(n))
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)

	var ratio float64
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}

	return MetricsSnapshot{
		RequestsTotal:       atomic.LoadUint64(&m.requestCount),
		CacheHits:           hits,
		CacheMisses:         misses,
		CacheHitRatio:       ratio,
		RosterFetches:       atomic.LoadUint64(&m.fetchCount),
		RosterFetchFailures: atomic.LoadUint64(&m.fetchFailures),
		RosterRecords:       atomic.LoadInt64(&m.lastRecordCount),
		Goroutines:          runtime.NumGoroutine(),
		GeneratedAt:         time.Now().UTC(),
	}
}
