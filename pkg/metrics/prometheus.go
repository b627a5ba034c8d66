// Package metrics provides Prometheus metrics for the KLSI scoring engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the scoring engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Session outcome counters.
	sessionsFinalized prometheus.Counter
	sessionsAborted   prometheus.Counter
	sessionsFailed    prometheus.Counter

	// Phase observability: each phase of the state machine is timed
	// independently.
	phaseDuration *prometheus.HistogramVec

	// Normative resolution quality.
	fallbackResolutions  prometheus.Counter
	truncatedResolutions prometheus.Counter

	// Validation findings recorded for downstream review.
	anomalies prometheus.Counter
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry for scoring metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize the global metrics manager.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with configuration options.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "klsi",
		subsystem:        "scoring",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500},
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.enabled {
		m.initializeMetrics()
	}
	return m
}

func (m *Manager) initializeMetrics() {
	factory := promauto.With(m.registry)

	m.sessionsFinalized = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_finalized_total",
		Help:      "Total number of sessions scored to completion",
	})
	m.sessionsAborted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_aborted_total",
		Help:      "Total number of controlled scoring aborts",
	})
	m.sessionsFailed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_failed_total",
		Help:      "Total number of hard scoring failures",
	})
	m.phaseDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "phase_duration_ms",
		Help:      "Duration of each scoring phase in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"phase"})
	m.fallbackResolutions = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fallback_resolutions_total",
		Help:      "Percentile resolutions that used a fallback tier",
	})
	m.truncatedResolutions = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "truncated_resolutions_total",
		Help:      "Percentile resolutions that clamped an out-of-range raw score",
	})
	m.anomalies = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "validation_anomalies_total",
		Help:      "Soft anomalies collected by the validation pipeline",
	})
}

// RecordSessionFinalized increments the finalized session counter.
func RecordSessionFinalized() {
	if globalManager != nil && globalManager.enabled {
		globalManager.sessionsFinalized.Inc()
	}
}

// RecordSessionAborted increments the controlled abort counter.
func RecordSessionAborted() {
	if globalManager != nil && globalManager.enabled {
		globalManager.sessionsAborted.Inc()
	}
}

// RecordSessionFailed increments the hard failure counter.
func RecordSessionFailed() {
	if globalManager != nil && globalManager.enabled {
		globalManager.sessionsFailed.Inc()
	}
}

// RecordPhaseDuration records one phase timing in milliseconds.
func RecordPhaseDuration(phase string, durationMs float64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.phaseDuration.WithLabelValues(phase).Observe(durationMs)
	}
}

// RecordFallbackResolution increments the fallback tier counter.
func RecordFallbackResolution() {
	if globalManager != nil && globalManager.enabled {
		globalManager.fallbackResolutions.Inc()
	}
}

// RecordTruncatedResolution increments the truncation counter.
func RecordTruncatedResolution() {
	if globalManager != nil && globalManager.enabled {
		globalManager.truncatedResolutions.Inc()
	}
}

// RecordAnomalies adds n validation anomalies.
func RecordAnomalies(n int) {
	if globalManager != nil && globalManager.enabled && n > 0 {
		globalManager.anomalies.Add(float64(n))
	}
}

// GetRegistry returns the custom registry for exposing metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
