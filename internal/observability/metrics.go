package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce              sync.Once
	workflowTransitionsTotal  *prometheus.CounterVec
	transitionRejectionsTotal *prometheus.CounterVec
	plagiarismChecksTotal     *prometheus.CounterVec
	assignmentConflictsTotal  prometheus.Counter
	reviewRenderSeconds       prometheus.Histogram
	httpRequestsTotal         *prometheus.CounterVec
	httpLatencySeconds        *prometheus.HistogramVec
)

// RegisterMetrics initialises the Prometheus collectors for the review workflow.
func RegisterMetrics() {
	registerOnce.Do(func() {
		workflowTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thesis_transitions_total",
			Help: "Total number of thesis status transitions committed.",
		}, []string{"from", "to"})

		transitionRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thesis_transition_rejections_total",
			Help: "Total number of transitions rejected by workflow guards.",
		}, []string{"reason"})

		plagiarismChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thesis_plagiarism_checks_total",
			Help: "Total number of plagiarism checks by outcome.",
		}, []string{"outcome"})

		assignmentConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thesis_assignment_conflicts_total",
			Help: "Total number of assignment attempts lost to an occupied slot.",
		})

		reviewRenderSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "thesis_review_render_seconds",
			Help:    "Latency distribution for review document rendering.",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		})

		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thesis_http_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "thesis_http_latency_seconds",
			Help:    "Latency distribution for HTTP requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		prometheus.MustRegister(
			workflowTransitionsTotal,
			transitionRejectionsTotal,
			plagiarismChecksTotal,
			assignmentConflictsTotal,
			reviewRenderSeconds,
			httpRequestsTotal,
			httpLatencySeconds,
		)
	})
}

// Transitions exposes the counter for committed status transitions.
func Transitions() *prometheus.CounterVec {
	RegisterMetrics()
	return workflowTransitionsTotal
}

// TransitionRejections exposes the counter for guard rejections.
func TransitionRejections() *prometheus.CounterVec {
	RegisterMetrics()
	return transitionRejectionsTotal
}

// PlagiarismChecks exposes the counter for plagiarism check outcomes.
func PlagiarismChecks() *prometheus.CounterVec {
	RegisterMetrics()
	return plagiarismChecksTotal
}

// AssignmentConflicts exposes the counter for lost assignment races.
func AssignmentConflicts() prometheus.Counter {
	RegisterMetrics()
	return assignmentConflictsTotal
}

// ReviewRenderSeconds exposes the render latency histogram.
func ReviewRenderSeconds() prometheus.Histogram {
	RegisterMetrics()
	return reviewRenderSeconds
}

// HTTPRequests exposes the counter for served requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for served requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}
