package models

import "time"

// SystemMetrics is a JSON-friendly snapshot of the in-process counters.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	LessonCompletions        uint64    `json:"lesson_completions"`
	CertificatesIssued       uint64    `json:"certificates_issued"`
	QuizSubmissions          uint64    `json:"quiz_submissions"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
