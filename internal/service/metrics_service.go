package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/ministry-learning-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	lessonCompletions     *prometheus.CounterVec
	certificates          *prometheus.CounterVec
	quizSubmissions       *prometheus.CounterVec
	enrollmentTransitions *prometheus.CounterVec
	streakTouches         *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	completionCount      uint64
	issuedCount          uint64
	quizCount            uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "area", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "area", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
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

	lessonCompletions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lesson_completion_updates_total",
		Help: "Lesson completion toggles recorded",
	}, []string{"completed"})

	certificates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "certificate_issuance_total",
		Help: "Certificate issuance attempts by outcome",
	}, []string{"outcome"})

	quizSubmissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_submissions_total",
		Help: "Graded quiz submissions",
	}, []string{"passed"})

	enrollmentTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollment_transitions_total",
		Help: "Enrollment status changes",
	}, []string{"from", "to"})

	streakTouches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "streak_touches_total",
		Help: "Activity touches by kind",
	}, []string{"kind"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		lessonCompletions, certificates, quizSubmissions, enrollmentTransitions, streakTouches, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:              registry,
		handler:               handler,
		requestDuration:       requestDuration,
		requestTotal:          requestTotal,
		cacheLatency:          cacheLatency,
		cacheWrite:            cacheWrite,
		cacheHitRatio:         cacheHitRatio,
		cacheHits:             cacheHits,
		cacheMisses:           cacheMisses,
		lessonCompletions:     lessonCompletions,
		certificates:          certificates,
		quizSubmissions:       quizSubmissions,
		enrollmentTransitions: enrollmentTransitions,
		streakTouches:         streakTouches,
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

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
// area groups routes by learning concern (enrollment, progress, quiz, certificate, activity, ops).
func (m *MetricsService) ObserveHTTPRequest(method, path, area string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, area, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, area, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordLessonCompletion counts a recorded completion toggle.
func (m *MetricsService) RecordLessonCompletion(completed bool) {
	if m == nil {
		return
	}
	m.lessonCompletions.WithLabelValues(fmt.Sprintf("%t", completed)).Inc()
	atomic.AddUint64(&m.completionCount, 1)
}

// RecordCertificate counts an issuance attempt. Outcome is one of issued, existing, ineligible or failed.
func (m *MetricsService) RecordCertificate(outcome string) {
	if m == nil {
		return
	}
	m.certificates.WithLabelValues(outcome).Inc()
	if outcome == "issued" {
		atomic.AddUint64(&m.issuedCount, 1)
	}
}

// RecordQuizSubmission counts a graded quiz.
func (m *MetricsService) RecordQuizSubmission(passed bool) {
	if m == nil {
		return
	}
	m.quizSubmissions.WithLabelValues(fmt.Sprintf("%t", passed)).Inc()
	atomic.AddUint64(&m.quizCount, 1)
}

// RecordEnrollmentTransition counts a status change.
func (m *MetricsService) RecordEnrollmentTransition(from, to models.EnrollmentStatus) {
	if m == nil {
		return
	}
	m.enrollmentTransitions.WithLabelValues(string(from), string(to)).Inc()
}

// RecordStreakTouch counts an activity touch.
func (m *MetricsService) RecordStreakTouch(kind models.ActivityKind) {
	if m == nil {
		return
	}
	m.streakTouches.WithLabelValues(string(kind)).Inc()
}

// Snapshot returns aggregated metrics suitable for the summary endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	totalLookups := hits + misses
	if totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		LessonCompletions:        atomic.LoadUint64(&m.completionCount),
		CertificatesIssued:       atomic.LoadUint64(&m.issuedCount),
		QuizSubmissions:          atomic.LoadUint64(&m.quizCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
