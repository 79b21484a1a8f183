package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for event publication.
type Metrics struct {
	Published    *prometheus.CounterVec
	Retries      *prometheus.CounterVec
	DeadLettered *prometheus.CounterVec
	BreakerState prometheus.Gauge
	QueueDepth   prometheus.Gauge
}

// New registers the event bus metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		Published: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "quorum_events_published_total",
			Help: "Envelopes successfully handed to the bus, by event name",
		}, []string{"event"}),

		Retries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "quorum_events_publish_retries_total",
			Help: "Publish attempts that failed and were retried, by event name",
		}, []string{"event"}),

		DeadLettered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "quorum_events_dead_lettered_total",
			Help: "Envelopes that exhausted retries, by event name",
		}, []string{"event"}),

		BreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "quorum_events_breaker_open",
			Help: "1 when the publish circuit breaker is open",
		}),

		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "quorum_events_queue_depth",
			Help: "Envelopes waiting in the relay inbox",
		}),
	}
}

func (m *Metrics) IncPublished(event string) {
	if m != nil {
		m.Published.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) IncRetry(event string) {
	if m != nil {
		m.Retries.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) IncDeadLettered(event string) {
	if m != nil {
		m.DeadLettered.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerState.Set(1)
	} else {
		m.BreakerState.Set(0)
	}
}

func (m *Metrics) SetQueueDepth(depth int) {
	if m != nil {
		m.QueueDepth.Set(float64(depth))
	}
}
