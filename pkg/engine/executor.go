package engine

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/visionflowai/visionflow-oss/internal/governance"
	"github.com/visionflowai/visionflow-oss/pkg/domain"
	"github.com/visionflowai/visionflow-oss/pkg/telemetry"
)

// Executor orchestrates a validated pipeline: nodes run strictly sequentially
// in the validator's topological order, each through the governed ToolRunner,
// with each node's output threaded into its dependents' inputs.
//
// The topological order is a total order for scheduling even when the graph
// has independent branches; parallel branch execution is a deliberate
// extension point, not an accidental limitation.
type Executor struct {
	runner         *ToolRunner
	defaultTimeout time.Duration
	logger         *slog.Logger
}

// ExecutorConfig holds dependencies for creating an Executor.
type ExecutorConfig struct {
	Runner         *ToolRunner
	DefaultTimeout time.Duration
	Logger         *slog.Logger
}

// NewExecutor creates a pipeline executor.
func NewExecutor(cfg ExecutorConfig) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		runner:         cfg.Runner,
		defaultTimeout: cfg.DefaultTimeout,
		logger:         logger,
	}
}

// Execute runs the pipeline described by a prior validation result. It
// requires validation.Valid; anything else is rejected with a
// ValidationError envelope and no node executes.
//
// On the first node failure the executor stops advancing the order: no
// further nodes execute, and the report carries the partial results of every
// prior node, the count of completed stages (including the failed one), the
// failing node id and its envelope.
func (e *Executor) Execute(ctx context.Context, pipeline *domain.Pipeline, initialInput map[string]any, validation domain.ValidationResult) *domain.RunReport {
	runID := uuid.NewString()
	report := &domain.RunReport{
		RunID:   runID,
		Results: make(map[string]map[string]any),
	}

	if !validation.Valid || len(validation.Order) == 0 {
		report.Error = domain.NewEnvelope(domain.ErrorTypeValidation,
			domain.ErrPipelineRejected.Error()+"; execution rejected", "").
			WithDetail("validation_errors", len(validation.Errors))
		return report
	}

	pipelineID := pipeline.ID
	e.logger.Info("executing pipeline",
		"pipeline_id", pipelineID,
		"run_id", runID,
		"nodes", len(validation.Order),
	)

	tracer := otel.Tracer("visionflow.pipeline")
	ctx, span := tracer.Start(ctx, "pipeline.execute", trace.WithAttributes(
		attribute.String("pipeline.id", pipelineID),
		attribute.String("run.id", runID),
		attribute.Int("pipeline.nodes", len(validation.Order)),
	))
	defer span.End()

	start := time.Now()
	for _, nodeID := range validation.Order {
		node := pipeline.NodeByID(nodeID)
		if node == nil {
			// The order references a node the pipeline no longer has; the
			// definition was mutated after validation.
			report.Error = domain.NewEnvelope(domain.ErrorTypeInternal,
				"topological order references unknown node "+nodeID, "")
			report.StageFailed = nodeID
			span.SetStatus(codes.Error, report.Error.Message)
			return report
		}

		input := e.assembleInput(pipeline, nodeID, initialInput, report.Results)

		timeout := governance.EffectiveTimeout(
			governance.TimeoutFromConfig(node.Config),
			e.defaultTimeout,
		)
		nodeCtx, cancel := context.WithTimeout(ctx, timeout)

		nodeCtx, nodeSpan := tracer.Start(nodeCtx, "pipeline.node", trace.WithAttributes(
			attribute.String("node.id", nodeID),
			attribute.String("tool.name", node.Tool),
		))

		nodeStart := time.Now()
		result, envelope := e.runner.Run(nodeCtx, node.Tool, node.Config, input)
		nodeElapsed := time.Since(nodeStart)
		cancel()

		report.StagesExecuted++

		outcome := "success"
		timedOut := false
		if envelope != nil {
			outcome = string(envelope.Type)
			if reason, ok := envelope.Details["reason"].(string); ok && reason == "timeout" {
				timedOut = true
			}
		}
		nodeSpan.SetAttributes(
			attribute.String("node.outcome", outcome),
			attribute.Int64("node.duration_ms", nodeElapsed.Milliseconds()),
		)

		telemetry.RecordInvocation(nodeCtx, telemetry.InvocationMetrics{
			PipelineID: pipelineID,
			RunID:      runID,
			NodeID:     nodeID,
			Tool:       node.Tool,
			Outcome:    outcome,
			Timeout:    timedOut,
			Duration:   nodeElapsed,
		})

		if envelope != nil {
			e.logger.Error("node execution failed",
				"pipeline_id", pipelineID,
				"run_id", runID,
				"node_id", nodeID,
				"tool", node.Tool,
				"error_type", envelope.Type,
				"error", envelope.Message,
			)
			nodeSpan.SetStatus(codes.Error, envelope.Message)
			nodeSpan.End()
			span.SetStatus(codes.Error, envelope.Message)

			report.StageFailed = nodeID
			report.Error = envelope
			report.ElapsedMS = time.Since(start).Milliseconds()
			return report
		}

		nodeSpan.End()
		report.Results[nodeID] = result
	}

	report.OK = true
	report.ElapsedMS = time.Since(start).Milliseconds()
	e.logger.Info("pipeline execution complete",
		"pipeline_id", pipelineID,
		"run_id", runID,
		"stages", report.StagesExecuted,
		"elapsed_ms", report.ElapsedMS,
	)
	return report
}

// assembleInput builds a node's input map. Nodes without incoming edges get
// the caller's initial input; every other node gets its predecessors'
// outputs, each threaded under the edge's input key. When a producer's
// result lacks the edge's output key, the whole result map is threaded.
func (e *Executor) assembleInput(pipeline *domain.Pipeline, nodeID string, initialInput map[string]any, results map[string]map[string]any) map[string]any {
	incoming := pipeline.IncomingEdges(nodeID)

	if len(incoming) == 0 {
		input := make(map[string]any, len(initialInput))
		for k, v := range initialInput {
			input[k] = v
		}
		return input
	}

	// Deterministic merge order so overlapping input keys resolve the same
	// way on every run.
	sort.SliceStable(incoming, func(i, j int) bool {
		if incoming[i].From != incoming[j].From {
			return incoming[i].From < incoming[j].From
		}
		return incoming[i].InputKeyOrDefault() < incoming[j].InputKeyOrDefault()
	})

	input := make(map[string]any, len(incoming))
	for _, edge := range incoming {
		producerResult, ok := results[edge.From]
		if !ok {
			continue
		}
		if value, present := producerResult[edge.OutputKeyOrDefault()]; present {
			input[edge.InputKeyOrDefault()] = value
		} else {
			input[edge.InputKeyOrDefault()] = producerResult
		}
	}
	return input
}
