package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Search outcomes recorded by MatchMetrics.
const (
	OutcomeMatched     = "matched"
	OutcomeEscalate    = "escalate"
	OutcomeUnavailable = "unavailable"
	OutcomeTimeout     = "timeout"
)

// MatchMetrics holds the Prometheus collectors for matching and feedback.
type MatchMetrics struct {
	Searches        *prometheus.CounterVec
	SearchDuration  prometheus.Histogram
	Candidates      prometheus.Histogram
	ScoringFailures prometheus.Counter
	FeedbackWrites  *prometheus.CounterVec
	Escalations     *prometheus.CounterVec
}

// NewMatchMetrics creates the collectors and registers them on reg.
// A nil registerer leaves them unregistered, which is what tests want.
func NewMatchMetrics(reg prometheus.Registerer) *MatchMetrics {
	m := &MatchMetrics{
		// Labels: outcome (matched, escalate, unavailable, timeout)
		Searches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "faq_engine",
				Subsystem: "matching",
				Name:      "searches_total",
				Help:      "Total number of FAQ searches by outcome",
			},
			[]string{"outcome"},
		),
		SearchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "faq_engine",
				Subsystem: "matching",
				Name:      "search_duration_seconds",
				Help:      "Duration of FAQ searches in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		Candidates: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "faq_engine",
				Subsystem: "matching",
				Name:      "accepted_candidates",
				Help:      "Number of candidates clearing the confidence threshold per search",
				Buckets:   []float64{0, 1, 2, 5, 10, 25, 50},
			},
		),
		ScoringFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "faq_engine",
				Subsystem: "matching",
				Name:      "scoring_failures_total",
				Help:      "Candidates whose similarity computation failed and were scored zero",
			},
		),
		// Labels: kind (view, rating), result (success, error)
		FeedbackWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "faq_engine",
				Subsystem: "feedback",
				Name:      "writes_total",
				Help:      "Feedback counter writes by kind and result",
			},
			[]string{"kind", "result"},
		),
		// Labels: priority
		Escalations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "faq_engine",
				Subsystem: "escalation",
				Name:      "created_total",
				Help:      "Escalations created by priority",
			},
			[]string{"priority"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.Searches,
			m.SearchDuration,
			m.Candidates,
			m.ScoringFailures,
			m.FeedbackWrites,
			m.Escalations,
		)
	}
	return m
}

// RecordSearch records one search outcome.
func (m *MatchMetrics) RecordSearch(outcome string, seconds float64, accepted int) {
	if m == nil {
		return
	}
	m.Searches.WithLabelValues(outcome).Inc()
	m.SearchDuration.Observe(seconds)
	if outcome == OutcomeMatched || outcome == OutcomeEscalate {
		m.Candidates.Observe(float64(accepted))
	}
}

// RecordScoringFailure counts a candidate scored zero after a scorer failure.
func (m *MatchMetrics) RecordScoringFailure() {
	if m == nil {
		return
	}
	m.ScoringFailures.Inc()
}

// RecordFeedback counts a feedback write.
func (m *MatchMetrics) RecordFeedback(kind string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.FeedbackWrites.WithLabelValues(kind, result).Inc()
}

// RecordEscalation counts a created escalation.
func (m *MatchMetrics) RecordEscalation(priority string) {
	if m == nil {
		return
	}
	m.Escalations.WithLabelValues(priority).Inc()
}
