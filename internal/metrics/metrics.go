// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wizardEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visa_wizard_events_total",
		Help: "Wizard events processed, by event and resulting phase",
	}, []string{"event", "phase"})

	validationBlocks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visa_wizard_validation_blocks_total",
		Help: "Next transitions blocked by an unanswered required question, by route",
	}, []string{"route"})

	submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visa_assessment_submissions_total",
		Help: "Assessment submissions by route and outcome",
	}, []string{"route", "outcome"})

	submissionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "visa_assessment_submission_duration_seconds",
		Help:    "Duration of assessment submissions in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	aiAssessments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visa_ai_assessments_total",
		Help: "AI assessments served, by provider and outcome",
	}, []string{"provider", "outcome"})

	guideFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visa_guide_fetches_total",
		Help: "Guide page fetches by source (cache, http, browser) and outcome",
	}, []string{"source", "outcome"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "visa_wizard_active_sessions",
		Help: "Wizard sessions currently held in memory",
	})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "visa_http_request_duration_seconds",
		Help:    "Latency of HTTP endpoints in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	rateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visa_ratelimit_rejections_total",
		Help: "Requests rejected by the rate limiter, by endpoint class",
	}, []string{"class"})
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// ObserveWizardEvent counts a processed wizard event.
func ObserveWizardEvent(event, phase string) {
	wizardEvents.WithLabelValues(event, phase).Inc()
}

// ObserveValidationBlock counts a Next blocked by the required gate.
func ObserveValidationBlock(routeID string) {
	validationBlocks.WithLabelValues(routeID).Inc()
}

// ObserveSubmission records one assessment submission. outcome is
// OutcomeSuccess or an error kind.
func ObserveSubmission(routeID, outcome string, seconds float64) {
	submissions.WithLabelValues(routeID, outcome).Inc()
	submissionDuration.Observe(seconds)
}

// ObserveAIAssessment counts an AI assessment served by the server.
func ObserveAIAssessment(provider, outcome string) {
	aiAssessments.WithLabelValues(provider, outcome).Inc()
}

// ObserveGuideFetch counts a guide page fetch.
func ObserveGuideFetch(source, outcome string) {
	guideFetches.WithLabelValues(source, outcome).Inc()
}

// SetActiveSessions sets the in-memory wizard session gauge.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// ObserveRequest records HTTP request latency.
func ObserveRequest(method, route, status string, seconds float64) {
	requestDuration.WithLabelValues(method, route, status).Observe(seconds)
}

// ObserveRateLimited counts a rejected request.
func ObserveRateLimited(class string) {
	rateLimited.WithLabelValues(class).Inc()
}
