package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ConsumerMetrics counts settled Pub/Sub deliveries per consumer and outcome.
type ConsumerMetrics struct {
	settled  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewConsumerMetrics(reg prometheus.Registerer) *ConsumerMetrics {
	if reg == nil {
		return &ConsumerMetrics{}
	}
	settled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "consumer",
		Name:      "deliveries_total",
		Help:      "Outbox event deliveries by consumer and outcome.",
	}, []string{"consumer", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "consumer",
		Name:      "handle_seconds",
		Help:      "Time from receipt to settlement of an outbox event delivery.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"consumer"})
	reg.MustRegister(settled, duration)
	return &ConsumerMetrics{settled: settled, duration: duration}
}

// Observe implements delivery.Recorder.
func (m *ConsumerMetrics) Observe(consumer, outcome string, elapsed time.Duration) {
	if m == nil || m.settled == nil {
		return
	}
	consumer = normalizeLabel(consumer)
	m.settled.WithLabelValues(consumer, normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(consumer).Observe(elapsed.Seconds())
}
