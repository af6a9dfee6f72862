// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "olivia"

// Metrics holds all Prometheus metrics for the client.
type Metrics struct {
	// Call metrics
	CallsStarted        prometheus.Counter
	CallsActive         prometheus.Gauge
	CallsFailed         *prometheus.CounterVec
	CallDuration        prometheus.Histogram
	TranscriptSnapshots prometheus.Counter
	PersistFailures     prometheus.Counter

	// Result metrics
	ResultArtifacts *prometheus.CounterVec
	PollAttempts    prometheus.Counter

	// Backend metrics
	BackendLatency *prometheus.HistogramVec
	BackendErrors  *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates and registers all metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CallsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_started_total",
			Help:      "Total number of voice calls started",
		}),
		CallsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calls_active",
			Help:      "Number of voice calls currently connected",
		}),
		CallsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_failed_total",
			Help:      "Total number of voice calls that ended in an error state",
		}, []string{"reason"}),
		CallDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Connected duration of voice calls in seconds",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		TranscriptSnapshots: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_snapshots_total",
			Help:      "Total number of transcript snapshots received",
		}),
		PersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_persist_failures_total",
			Help:      "Total number of best-effort call data saves that failed",
		}),

		ResultArtifacts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_artifacts_total",
			Help:      "Result artifacts requested, by artifact and outcome",
		}, []string{"artifact", "source", "outcome"}),
		PollAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_poll_attempts_total",
			Help:      "Total number of result polling rounds",
		}),

		BackendLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Intake backend request latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"endpoint"}),
		BackendErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_request_errors_total",
			Help:      "Total number of failed intake backend requests",
		}, []string{"endpoint"}),
	}
}

// RecordCallStarted records a call reaching the connected state.
func (m *Metrics) RecordCallStarted() {
	m.CallsStarted.Inc()
	m.CallsActive.Inc()
}

// RecordCallFinished records a connected call ending.
func (m *Metrics) RecordCallFinished(durationSeconds float64) {
	m.CallsActive.Dec()
	m.CallDuration.Observe(durationSeconds)
}

// RecordCallFailed records a call entering the error state.
func (m *Metrics) RecordCallFailed(reason string) {
	m.CallsFailed.WithLabelValues(reason).Inc()
}

// RecordTranscriptSnapshot records a transcript update from the voice SDK.
func (m *Metrics) RecordTranscriptSnapshot() {
	m.TranscriptSnapshots.Inc()
}

// RecordPersistFailure records a failed best-effort save.
func (m *Metrics) RecordPersistFailure() {
	m.PersistFailures.Inc()
}

// RecordArtifact records a summary or goal-analysis request outcome.
func (m *Metrics) RecordArtifact(artifact, source string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.ResultArtifacts.WithLabelValues(artifact, source, outcome).Inc()
}

// RecordPollAttempt records one polling round.
func (m *Metrics) RecordPollAttempt() {
	m.PollAttempts.Inc()
}

// RecordBackendRequest records an intake backend request.
func (m *Metrics) RecordBackendRequest(endpoint string, err error, latencySeconds float64) {
	m.BackendLatency.WithLabelValues(endpoint).Observe(latencySeconds)
	if err != nil {
		m.BackendErrors.WithLabelValues(endpoint).Inc()
	}
}
