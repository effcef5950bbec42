package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumerMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewConsumerMetrics(reg)

	m.Observe("fulfillment", "handled", 20*time.Millisecond)
	m.Observe("fulfillment", "handled", 30*time.Millisecond)
	m.Observe("fulfillment", "retry", time.Millisecond)
	m.Observe("", "duplicate", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.settled.WithLabelValues("fulfillment", "handled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.settled.WithLabelValues("fulfillment", "retry")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.settled.WithLabelValues("unknown", "duplicate")))

	count, err := testutil.GatherAndCount(reg, "telcobill_consumer_handle_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNilConsumerMetricsIsNoop(t *testing.T) {
	var m *ConsumerMetrics
	m.Observe("analytics", "handled", time.Second)
	NewConsumerMetrics(nil).Observe("analytics", "handled", time.Second)
}
