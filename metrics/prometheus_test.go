package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SessionStarted()
	m.SessionStarted()
	m.SessionEnded()
	m.Flushed("size", 3200, time.Millisecond, false)
	m.Flushed("timer", 640, time.Millisecond, true)
	m.SessionRejected("missing_call_id")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActiveSessions))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.SessionsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Flushes.WithLabelValues("size")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ConditionFallbacks))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionsRejected.WithLabelValues("missing_call_id")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SessionStarted()
		m.ChunkReceived()
		m.Flushed("drain", 1, 0, true)
		m.EncodeFinished("success", time.Second)
	})
}
