package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"runtime/debug"
	"strings"
	"time"

	"github.com/visionflowai/visionflow-oss/internal/governance"
	"github.com/visionflowai/visionflow-oss/pkg/catalog"
	"github.com/visionflowai/visionflow-oss/pkg/domain"
	"github.com/visionflowai/visionflow-oss/pkg/engine/runtime"
	"github.com/visionflowai/visionflow-oss/pkg/telemetry"
)

// ToolRunner is the single path through which tools are ever invoked. No
// other component may call a tool directly. Every call terminates in either
// a result or an error envelope, never an unhandled panic, and the metrics
// registry is updated exactly once per call regardless of outcome.
type ToolRunner struct {
	catalog  *catalog.Catalog
	metrics  *telemetry.Registry
	breakers *governance.BreakerManager
	logger   *slog.Logger
}

// ToolRunnerConfig holds dependencies for creating a ToolRunner.
type ToolRunnerConfig struct {
	Catalog  *catalog.Catalog
	Metrics  *telemetry.Registry
	Breakers *governance.BreakerManager
	Logger   *slog.Logger
}

// NewToolRunner creates the governed execution path. Catalog and Metrics are
// required; Breakers defaults to a manager with default thresholds.
func NewToolRunner(cfg ToolRunnerConfig) *ToolRunner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	breakers := cfg.Breakers
	if breakers == nil {
		breakers = governance.NewBreakerManager(governance.DefaultBreakerConfig())
	}
	return &ToolRunner{
		catalog:  cfg.Catalog,
		metrics:  cfg.Metrics,
		breakers: breakers,
		logger:   logger,
	}
}

// Run executes one tool invocation: input validation, breaker gate,
// deadline-bounded invocation, output validation, error classification.
// Exactly one of result/envelope is non-nil on return.
//
// Finalization is a deferred block, not a step: the metrics update runs even
// when validation fails, the invoker panics, or the runner itself panics.
func (r *ToolRunner) Run(ctx context.Context, toolName string, config, input map[string]any) (result map[string]any, envelope *domain.ErrorEnvelope) {
	start := time.Now()
	invoked := false
	unavailable := false

	var budget time.Duration
	if deadline, ok := ctx.Deadline(); ok {
		budget = deadline.Sub(start)
	}

	defer func() {
		if p := recover(); p != nil {
			result = nil
			envelope = domain.NewEnvelope(domain.ErrorTypeInternal,
				fmt.Sprintf("tool runner panicked: %v", p), toolName).
				WithTrace(string(debug.Stack()))
		}
		r.finalize(toolName, time.Since(start), envelope, invoked, unavailable)
	}()

	meta, ok := r.catalog.Lookup(toolName)
	if !ok {
		return nil, domain.NewEnvelope(domain.ErrorTypeValidation,
			fmt.Sprintf("%v: %q", domain.ErrToolNotFound, toolName), toolName)
	}

	if env := validateInput(meta, input); env != nil {
		return nil, env
	}

	breaker := r.breakers.For(toolName)
	if err := breaker.Allow(); err != nil {
		unavailable = true
		return nil, domain.NewEnvelope(domain.ErrorTypeExecution,
			fmt.Sprintf("tool %q is unavailable: %v", toolName, err), toolName).
			WithDetail("reason", "circuit_open")
	}

	invoker, ok := r.catalog.Invoker(toolName)
	if !ok {
		return nil, domain.NewEnvelope(domain.ErrorTypeExecution,
			fmt.Sprintf("%v: %q", domain.ErrInvokerNotFound, toolName), toolName)
	}

	invoked = true
	output, err := r.invoke(ctx, invoker, config, input)
	if err != nil {
		return nil, r.classify(toolName, err, budget)
	}

	if env := validateOutput(meta, toolName, output); env != nil {
		return nil, env
	}

	return output, nil
}

// finalize is the unconditional metrics update. It must never be skipped by
// an early return and must itself never panic.
func (r *ToolRunner) finalize(toolName string, elapsed time.Duration, envelope *domain.ErrorEnvelope, invoked, unavailable bool) {
	success := envelope == nil
	state := domain.LifecycleInitialized
	switch {
	case unavailable:
		state = domain.LifecycleUnavailable
	case !success:
		state = domain.LifecycleFailed
	}

	r.metrics.Record(toolName, elapsed, success, state)

	// Breaker health only reflects actual invocations; validation rejections
	// and short-circuits say nothing about the tool itself.
	if invoked {
		r.breakers.For(toolName).Record(success)
	}

	if success {
		r.logger.Debug("tool invocation succeeded", "tool", toolName, "duration_ms", elapsed.Milliseconds())
	} else {
		r.logger.Warn("tool invocation failed",
			"tool", toolName,
			"duration_ms", elapsed.Milliseconds(),
			"error_type", envelope.Type,
			"error", envelope.Message,
			"trace", envelope.Trace,
		)
	}
}

type invocationResult struct {
	output map[string]any
	err    error
}

// invoke calls the tool behind a channel so the runner's wait is bounded by
// ctx even when the underlying invoker cannot be interrupted. The deadline
// bounds how long we wait for the result, not the in-flight work itself.
func (r *ToolRunner) invoke(ctx context.Context, invoker runtime.ToolInvoker, config, input map[string]any) (map[string]any, error) {
	done := make(chan invocationResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- invocationResult{err: &panicError{value: p, stack: debug.Stack()}}
			}
		}()
		output, err := invoker.Invoke(ctx, config, input)
		done <- invocationResult{output: output, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.output, res.err
	}
}

// panicError carries a recovered panic out of the invocation goroutine.
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("tool panicked: %v", e.value)
}

// classify maps an invocation error to an envelope. Typed domain errors win;
// otherwise the error's type name decides (names containing "Validation" map
// to ValidationError, "Plugin" to PluginError, everything else to
// ExecutionError).
func (r *ToolRunner) classify(toolName string, err error, budget time.Duration) *domain.ErrorEnvelope {
	if errors.Is(err, context.DeadlineExceeded) {
		message := fmt.Sprintf("tool %q invocation timed out", toolName)
		if budget > 0 {
			message = fmt.Sprintf("tool %q invocation timed out after %dms", toolName, budget.Milliseconds())
		}
		return domain.NewEnvelope(domain.ErrorTypeExecution, message, toolName).
			WithDetail("reason", "timeout").
			WithDetail("timeout_ms", budget.Milliseconds())
	}
	if errors.Is(err, context.Canceled) {
		return domain.NewEnvelope(domain.ErrorTypeExecution,
			fmt.Sprintf("tool %q invocation canceled", toolName), toolName).
			WithDetail("reason", "canceled")
	}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		env := domain.NewEnvelope(domain.ErrorTypeValidation, validationErr.Message, toolName)
		for k, v := range validationErr.Details {
			env.WithDetail(k, v)
		}
		return env
	}

	var pluginErr *domain.PluginError
	if errors.As(err, &pluginErr) {
		return domain.NewEnvelope(domain.ErrorTypePlugin, pluginErr.Error(), toolName).
			WithTrace(fmt.Sprintf("%+v", err))
	}

	var panicked *panicError
	if errors.As(err, &panicked) {
		return domain.NewEnvelope(domain.ErrorTypeExecution, panicked.Error(), toolName).
			WithTrace(string(panicked.stack))
	}

	errType := reflect.TypeOf(err).String()
	switch {
	case strings.Contains(errType, "Validation"):
		return domain.NewEnvelope(domain.ErrorTypeValidation, err.Error(), toolName)
	case strings.Contains(errType, "Plugin"):
		return domain.NewEnvelope(domain.ErrorTypePlugin, err.Error(), toolName).
			WithTrace(fmt.Sprintf("%+v", err))
	default:
		return domain.NewEnvelope(domain.ErrorTypeExecution, err.Error(), toolName).
			WithTrace(fmt.Sprintf("%+v", err))
	}
}

// validateInput checks the assembled input against the tool's declared
// shape before any invocation happens. A rejected input skips the tool
// entirely.
func validateInput(meta domain.ToolMetadata, input map[string]any) *domain.ErrorEnvelope {
	if input == nil {
		return domain.NewEnvelope(domain.ErrorTypeValidation,
			fmt.Sprintf("tool %q received nil input", meta.Name), meta.Name)
	}
	if len(meta.InputTypes) > 0 && len(input) == 0 {
		return domain.NewEnvelope(domain.ErrorTypeValidation,
			fmt.Sprintf("tool %q declares input types %v but received empty input", meta.Name, meta.InputTypes), meta.Name).
			WithDetail("input_types", meta.InputTypes)
	}
	for key, value := range input {
		if value == nil {
			return domain.NewEnvelope(domain.ErrorTypeValidation,
				fmt.Sprintf("tool %q received nil value for input key %q", meta.Name, key), meta.Name).
				WithDetail("input_key", key)
		}
	}
	return nil
}

// validateOutput checks that a non-erroring invocation actually produced a
// well-formed result. A nil or empty result is an ExecutionError even though
// the invoker returned no error.
func validateOutput(meta domain.ToolMetadata, toolName string, output map[string]any) *domain.ErrorEnvelope {
	if output == nil {
		return domain.NewEnvelope(domain.ErrorTypeExecution,
			fmt.Sprintf("tool %q returned nil result", toolName), toolName)
	}
	if len(output) == 0 {
		return domain.NewEnvelope(domain.ErrorTypeExecution,
			fmt.Sprintf("tool %q returned an empty result", toolName), toolName).
			WithDetail("output_types", meta.OutputTypes)
	}
	return nil
}
