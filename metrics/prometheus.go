package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus collectors of the voice bridge.
// All methods are safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	// Proxy metrics
	ActiveSessions      prometheus.Gauge
	SessionsTotal       prometheus.Counter
	SessionsRejected    *prometheus.CounterVec
	UpstreamErrors      prometheus.Counter
	ChunksReceived      prometheus.Counter
	Flushes             *prometheus.CounterVec
	FlushSize           prometheus.Histogram
	ConditionFallbacks  prometheus.Counter
	ConditioningLatency prometheus.Histogram

	// Encoder metrics
	EncodeJobs     *prometheus.CounterVec
	EncodeDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "voicebridge_active_sessions",
			Help: "Current number of proxied call sessions",
		}),
		SessionsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_sessions_total",
			Help: "Total number of call sessions started",
		}),
		SessionsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebridge_sessions_rejected_total",
			Help: "Downstream connections closed before a session started",
		}, []string{"reason"}),
		UpstreamErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_upstream_errors_total",
			Help: "Upstream dial or read failures",
		}),
		ChunksReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_chunks_received_total",
			Help: "Binary audio frames received from upstream",
		}),
		Flushes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebridge_flushes_total",
			Help: "Batches forwarded downstream, by trigger",
		}, []string{"trigger"}),
		FlushSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicebridge_flush_size_bytes",
			Help:    "Size of forwarded batches in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 2, 10), // 256B to 128KB
		}),
		ConditionFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_condition_fallbacks_total",
			Help: "Batches forwarded unmodified after a conditioning fault",
		}),
		ConditioningLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicebridge_conditioning_duration_seconds",
			Help:    "Time spent stitching and conditioning one batch",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8), // 10us to ~160ms
		}),
		EncodeJobs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebridge_encode_jobs_total",
			Help: "Voice note encode jobs, by result",
		}, []string{"result"}),
		EncodeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicebridge_encode_duration_seconds",
			Help:    "Wall time of voice note encode jobs",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsTotal.Inc()
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

func (m *Metrics) SessionRejected(reason string) {
	if m == nil {
		return
	}
	m.SessionsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) UpstreamError() {
	if m == nil {
		return
	}
	m.UpstreamErrors.Inc()
}

func (m *Metrics) ChunkReceived() {
	if m == nil {
		return
	}
	m.ChunksReceived.Inc()
}

// Flushed records one forwarded batch. trigger is "size", "timer" or "drain".
func (m *Metrics) Flushed(trigger string, bytes int, took time.Duration, fellBack bool) {
	if m == nil {
		return
	}
	m.Flushes.WithLabelValues(trigger).Inc()
	m.FlushSize.Observe(float64(bytes))
	m.ConditioningLatency.Observe(took.Seconds())
	if fellBack {
		m.ConditionFallbacks.Inc()
	}
}

func (m *Metrics) EncodeFinished(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.EncodeJobs.WithLabelValues(result).Inc()
	m.EncodeDuration.Observe(took.Seconds())
}
