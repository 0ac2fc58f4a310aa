package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	metricsOnce          sync.Once
	metricsInitErr       error
	invocationCounter    metric.Int64Counter
	invocationTimeouts   metric.Int64Counter
	invocationLatencyHst metric.Float64Histogram
)

// InvocationMetrics captures the fields needed to record pipeline node
// telemetry for one governed tool invocation.
type InvocationMetrics struct {
	PipelineID string
	RunID      string
	NodeID     string
	Tool       string
	Outcome    string
	Timeout    bool
	Duration   time.Duration
}

// RecordInvocation emits counters and histograms describing node execution
// behaviour. Emission failures are silently dropped; telemetry must never
// affect the execution path.
func RecordInvocation(ctx context.Context, metrics InvocationMetrics) {
	if err := ensureMetrics(); err != nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("pipeline.id", metrics.PipelineID),
		attribute.String("run.id", metrics.RunID),
		attribute.String("node.id", metrics.NodeID),
		attribute.String("tool.name", metrics.Tool),
		attribute.String("node.outcome", metrics.Outcome),
	}

	invocationCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	if metrics.Duration > 0 {
		invocationLatencyHst.Record(ctx, float64(metrics.Duration)/float64(time.Millisecond), metric.WithAttributes(attrs...))
	}

	if metrics.Timeout {
		invocationTimeouts.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("visionflow.pipeline")

		invocationCounter, metricsInitErr = meter.Int64Counter(
			"visionflow.node.invocations_total",
			metric.WithDescription("Governed tool invocations partitioned by outcome"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		invocationTimeouts, metricsInitErr = meter.Int64Counter(
			"visionflow.node.timeout_total",
			metric.WithDescription("Tool invocations that exceeded their deadline"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		invocationLatencyHst, metricsInitErr = meter.Float64Histogram(
			"visionflow.node.duration_ms",
			metric.WithDescription("Observed tool invocation latency"),
			metric.WithUnit("ms"),
		)
	})

	return metricsInitErr
}
