// Package metrics holds the prometheus collectors for publishing and queue runs.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	PublishOutcomes  *prometheus.CounterVec
	PublishDuration  *prometheus.HistogramVec
	QueueRuns        *prometheus.CounterVec
	QueueRunDuration prometheus.Histogram
	RateLimitWaits   *prometheus.CounterVec
	RuleViolations   *prometheus.CounterVec
	InFlight         prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PublishOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_publish_outcomes_total",
			Help: "Publish attempts by outcome",
		}, []string{"outcome"}),
		PublishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scheduler_publish_duration_seconds",
			Help:    "Time spent posting to the external API",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		QueueRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_queue_runs_total",
			Help: "Queue processing passes by status",
		}, []string{"status"}),
		QueueRunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scheduler_queue_run_duration_seconds",
			Help:    "Duration of a completed queue pass",
			Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300},
		}),
		RateLimitWaits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_rate_limit_waits_total",
			Help: "Times a publish waited for the rate limit window to reset",
		}, []string{"endpoint"}),
		RuleViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_rule_violations_total",
			Help: "Rule violations raised while scheduling or publishing",
		}, []string{"kind", "blocking"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scheduler_publishes_in_flight",
			Help: "Publishes currently talking to the external API",
		}),
	}
	reg.MustRegister(m.PublishOutcomes, m.PublishDuration, m.QueueRuns, m.QueueRunDuration,
		m.RateLimitWaits, m.RuleViolations, m.InFlight)
	return m
}

func (m *Metrics) ObservePublish(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.PublishOutcomes.WithLabelValues(outcome).Inc()
	m.PublishDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) ObserveQueueRun(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.QueueRuns.WithLabelValues(status).Inc()
	if d > 0 {
		m.QueueRunDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveRateLimitWait(endpoint string, _ time.Duration) {
	if m == nil {
		return
	}
	m.RateLimitWaits.WithLabelValues(endpoint).Inc()
}

func (m *Metrics) ObserveViolation(kind string, blocking bool) {
	if m == nil {
		return
	}
	label := "false"
	if blocking {
		label = "true"
	}
	m.RuleViolations.WithLabelValues(kind, label).Inc()
}

func (m *Metrics) TrackInFlight() func() {
	if m == nil {
		return func() {}
	}
	m.InFlight.Inc()
	return m.InFlight.Dec
}
