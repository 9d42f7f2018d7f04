package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	attemptsStarted    *prometheus.CounterVec
	submissionsGraded  *prometheus.CounterVec
	gradingDuration    *prometheus.HistogramVec
	sweepOutcomes      *prometheus.CounterVec
	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
)

// RegisterMetrics initialises the Prometheus collectors for the grading service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		attemptsStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attempts_started_total",
			Help: "Attempt admissions by assignment kind and outcome (created, resumed).",
		}, []string{"assignment_kind", "outcome"})

		submissionsGraded = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "submissions_graded_total",
			Help: "Submissions moved to GRADED, by resource kind and trigger (submit, expiry).",
		}, []string{"resource_kind", "trigger"})

		gradingDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grading_duration_seconds",
			Help:    "Time spent inside the finalize transaction.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"resource_kind"})

		sweepOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "expiry_sweep_rows_total",
			Help: "Rows visited by the expiry sweeper, by outcome (graded, skipped, failed).",
		}, []string{"outcome"})

		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		prometheus.MustRegister(attemptsStarted, submissionsGraded, gradingDuration,
			sweepOutcomes, httpRequestsTotal, httpLatencySeconds)
	})
}

// AttemptsStarted exposes the admission counter.
func AttemptsStarted() *prometheus.CounterVec {
	RegisterMetrics()
	return attemptsStarted
}

// SubmissionsGraded exposes the finalize counter.
func SubmissionsGraded() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsGraded
}

// GradingDuration exposes the finalize latency histogram.
func GradingDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return gradingDuration
}

// SweepOutcomes exposes the sweeper row counter.
func SweepOutcomes() *prometheus.CounterVec {
	RegisterMetrics()
	return sweepOutcomes
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}
