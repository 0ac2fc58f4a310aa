package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/visionflowai/visionflow-oss/pkg/domain"
)

// Metrics holds the Prometheus collectors mirroring the in-process tool
// metrics registry, for scraping by an external Prometheus server.
type Metrics struct {
	invocationsTotal   *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	toolLifecycle      *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics instance with all tool-invocation collectors
// registered on a private Prometheus registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		invocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "visionflow_tool_invocations_total",
				Help: "Total number of governed tool invocations by outcome",
			},
			[]string{"tool", "outcome"},
		),

		invocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "visionflow_tool_invocation_duration_seconds",
				Help:    "Tool invocation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),

		toolLifecycle: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "visionflow_tool_lifecycle_state",
				Help: "Current lifecycle state per tool (1 for the active state, 0 otherwise)",
			},
			[]string{"tool", "state"},
		),

		registry: registry,
	}

	registry.MustRegister(m.invocationsTotal, m.invocationDuration, m.toolLifecycle)
	return m
}

// Handler returns the HTTP handler serving the /metrics scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

var lifecycleStates = []domain.LifecycleState{
	domain.LifecycleLoaded,
	domain.LifecycleInitialized,
	domain.LifecycleRunning,
	domain.LifecycleFailed,
	domain.LifecycleUnavailable,
}

func (m *Metrics) observeInvocation(tool string, elapsed time.Duration, success bool, state domain.LifecycleState) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	m.invocationsTotal.WithLabelValues(tool, outcome).Inc()
	m.invocationDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
	m.observeLifecycle(tool, state)
}

func (m *Metrics) observeLifecycle(tool string, state domain.LifecycleState) {
	for _, s := range lifecycleStates {
		val := 0.0
		if s == state {
			val = 1.0
		}
		m.toolLifecycle.WithLabelValues(tool, string(s)).Set(val)
	}
}
