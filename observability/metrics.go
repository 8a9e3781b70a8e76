package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type transitionMetrics struct {
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

var (
	transitionOnce     sync.Once
	transitionRegistry *transitionMetrics
)

// TransitionMetrics returns the lazily-initialised registry used to record
// dispatcher activity.
func TransitionMetrics() *transitionMetrics {
	transitionOnce.Do(func() {
		transitionRegistry = &transitionMetrics{
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "swapescrow",
				Subsystem: "core",
				Name:      "transitions_total",
				Help:      "Total dispatched transitions segmented by opcode and outcome.",
			}, []string{"opcode", "outcome"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "swapescrow",
				Subsystem: "core",
				Name:      "transition_failures_total",
				Help:      "Total rejected transitions segmented by opcode and error kind.",
			}, []string{"opcode", "kind"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "swapescrow",
				Subsystem: "core",
				Name:      "transition_duration_seconds",
				Help:      "Latency distribution for transition processing.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"opcode"}),
		}
		prometheus.MustRegister(
			transitionRegistry.transitions,
			transitionRegistry.failures,
			transitionRegistry.latency,
		)
	})
	return transitionRegistry
}

// Observe records one dispatched transition. The kind should be a stable
// error-kind string such as "invalid_account", or empty on success.
func (m *transitionMetrics) Observe(opcode string, kind string, duration time.Duration) {
	if m == nil {
		return
	}
	if opcode == "" {
		opcode = "unknown"
	}
	outcome := "success"
	if kind != "" {
		outcome = "error"
		m.failures.WithLabelValues(opcode, kind).Inc()
	}
	m.transitions.WithLabelValues(opcode, outcome).Inc()
	m.latency.WithLabelValues(opcode).Observe(duration.Seconds())
}
