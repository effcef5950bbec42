package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "telcobill"

// Cron run results.
const (
	CronSucceeded = "success"
	CronFailed    = "failure"
	CronSkipped   = "skipped"
)

// CronJobMetrics tracks scheduled billing jobs. lastSuccess lets alerts fire
// when dunning or renewals stop completing.
type CronJobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	now         func() time.Time
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "runs_total",
			Help:      "Cron job runs by result.",
		}, []string{"job", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "run_seconds",
			Help:      "Wall time of cron jobs that acquired their lock.",
			Buckets:   []float64{.1, .5, 1, 5, 15, 30, 60, 300, 900},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}, []string{"job"}),
		now: time.Now,
	}
	reg.MustRegister(m.runs, m.duration, m.lastSuccess)
	return m
}

// Record counts one run. elapsed is ignored for skipped runs.
func (m *CronJobMetrics) Record(job, result string, elapsed time.Duration) {
	if m == nil || m.runs == nil {
		return
	}
	job = normalizeLabel(job)
	m.runs.WithLabelValues(job, normalizeLabel(result)).Inc()
	if result == CronSkipped {
		return
	}
	m.duration.WithLabelValues(job).Observe(elapsed.Seconds())
	if result == CronSucceeded {
		m.lastSuccess.WithLabelValues(job).Set(float64(m.now().Unix()))
	}
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
