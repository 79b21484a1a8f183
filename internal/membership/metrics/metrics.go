package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the membership lifecycle.
type Metrics struct {
	// Transition outcomes by command and result
	TransitionOutcome *prometheus.CounterVec

	// External evidence gathering latencies by source
	EvidenceLatency *prometheus.HistogramVec

	// End-to-end command latency by command
	CommandLatency *prometheus.HistogramVec

	// Optimistic concurrency conflicts surfaced to callers
	Conflicts prometheus.Counter
}

// New creates a new Metrics instance with all lifecycle metrics registered.
func New() *Metrics {
	return &Metrics{
		TransitionOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "quorum_membership_transitions_total",
			Help: "Lifecycle command outcomes by command and result",
		}, []string{"command", "result"}), // result: "applied", "noop", "rejected", "error"

		EvidenceLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quorum_membership_evidence_duration_seconds",
			Help:    "Duration of external evidence gathering by source",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"source"}), // source: "geography", "payment"

		CommandLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quorum_membership_command_duration_seconds",
			Help:    "Duration of full command handling including evidence and persistence",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"command"}),

		Conflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "quorum_membership_save_conflicts_total",
			Help: "Saves lost to a concurrent writer and surfaced as conflicts",
		}),
	}
}

// IncrementOutcome records a command outcome.
func (m *Metrics) IncrementOutcome(command, result string) {
	if m != nil {
		m.TransitionOutcome.WithLabelValues(command, result).Inc()
	}
}

// ObserveEvidenceLatency records the duration of fetching evidence from a source.
func (m *Metrics) ObserveEvidenceLatency(source string, d time.Duration) {
	if m != nil {
		m.EvidenceLatency.WithLabelValues(source).Observe(d.Seconds())
	}
}

// ObserveCommandLatency records the total command duration.
func (m *Metrics) ObserveCommandLatency(command string, d time.Duration) {
	if m != nil {
		m.CommandLatency.WithLabelValues(command).Observe(d.Seconds())
	}
}

// IncrementConflict records a lost optimistic concurrency race.
func (m *Metrics) IncrementConflict() {
	if m != nil {
		m.Conflicts.Inc()
	}
}
