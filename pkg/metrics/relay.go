package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RelayMetrics records outbox relay batches and per-event outcomes.
type RelayMetrics struct {
	duration  prometheus.Histogram
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

// NewRelayMetrics registers the outbox relay metrics on reg.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	if reg == nil {
		return &RelayMetrics{}
	}
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "outbox_batch_duration_seconds",
		Help:      "Duration of outbox relay batches in seconds.",
		Buckets:   prometheus.DefBuckets,
	})
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_published_total",
		Help:      "Outbox events relayed to the broker.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_publish_failures_total",
		Help:      "Outbox events that failed to relay.",
	}, []string{"event_type"})
	reg.MustRegister(duration, published, failed)
	return &RelayMetrics{duration: duration, published: published, failed: failed}
}

// ObserveBatch records the duration of one relay batch.
func (r *RelayMetrics) ObserveBatch(d time.Duration) {
	if r == nil || r.duration == nil {
		return
	}
	r.duration.Observe(d.Seconds())
}

func (r *RelayMetrics) IncPublished(eventType string) {
	if r == nil || r.published == nil {
		return
	}
	r.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (r *RelayMetrics) IncFailed(eventType string) {
	if r == nil || r.failed == nil {
		return
	}
	r.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}
