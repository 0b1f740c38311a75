package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObservePublish("posted", 120*time.Millisecond)
	m.ObservePublish("posted", 80*time.Millisecond)
	m.ObservePublish("failed", time.Second)
	m.ObserveQueueRun("completed", time.Second)
	m.ObserveRateLimitWait("tweets", time.Minute)
	m.ObserveViolation("min_interval", true)

	done := m.TrackInFlight()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InFlight))
	done()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PublishOutcomes.WithLabelValues("posted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishOutcomes.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueueRuns.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitWaits.WithLabelValues("tweets")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RuleViolations.WithLabelValues("min_interval", "true")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlight))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObservePublish("posted", time.Second)
	m.ObserveQueueRun("completed", time.Second)
	m.ObserveRateLimitWait("tweets", time.Second)
	m.ObserveViolation("daily_limit", false)
	m.TrackInFlight()()
}
