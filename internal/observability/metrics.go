package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce      sync.Once
	apiRequestsTotal  *prometheus.CounterVec
	apiLatencySeconds *prometheus.HistogramVec
	apiErrorsTotal    *prometheus.CounterVec

	gradingOutcomesTotal     *prometheus.CounterVec
	gradingDurationSeconds   prometheus.Histogram
	codeReviewFallbacksTotal *prometheus.CounterVec
	regradeSubmissionsTotal  *prometheus.CounterVec
	gradeNotificationsTotal  *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_api_requests_total",
			Help: "Total number of grading API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grading_api_latency_seconds",
			Help:    "Latency distribution for grading API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_api_errors_total",
			Help: "Total number of error responses returned by grading API endpoints.",
		}, []string{"method", "route", "status"})

		gradingOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_outcomes_total",
			Help: "Grading runs by terminal outcome.",
		}, []string{"outcome"})

		gradingDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grading_duration_seconds",
			Help:    "Duration of a full submission grading run.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		})

		codeReviewFallbacksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_code_review_fallbacks_total",
			Help: "Coding answers graded without the external code review, by fallback mode.",
		}, []string{"mode"})

		regradeSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regrade_submissions_total",
			Help: "Submissions processed by the regrade sweeper, by result.",
		}, []string{"result"})

		gradeNotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grade_notifications_total",
			Help: "Grade notifications handed off, by channel and result.",
		}, []string{"channel", "result"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			gradingOutcomesTotal,
			gradingDurationSeconds,
			codeReviewFallbacksTotal,
			regradeSubmissionsTotal,
			gradeNotificationsTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// GradingOutcomes counts grading runs by outcome.
func GradingOutcomes() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingOutcomesTotal
}

// GradingDuration observes full grading runs.
func GradingDuration() prometheus.Histogram {
	RegisterMetrics()
	return gradingDurationSeconds
}

// CodeReviewFallbacks counts coding answers graded without the external review.
func CodeReviewFallbacks() *prometheus.CounterVec {
	RegisterMetrics()
	return codeReviewFallbacksTotal
}

// RegradeSubmissions counts sweeper results.
func RegradeSubmissions() *prometheus.CounterVec {
	RegisterMetrics()
	return regradeSubmissionsTotal
}

// GradeNotifications counts notification hand-offs.
func GradeNotifications() *prometheus.CounterVec {
	RegisterMetrics()
	return gradeNotificationsTotal
}
