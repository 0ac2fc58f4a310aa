// Package runtime defines the core contracts shared by the pipeline executor
// and tool invokers, keeping tool logic decoupled from execution mechanics.
package runtime

import "context"

// ToolInvoker is the single capability through which a tool is ever executed.
// Implementations wrap whatever the tool actually is (in-process function,
// subprocess, remote service); the runner depends only on this interface and
// never on concrete tool types.
//
// Invoke must honour ctx cancellation where the underlying work allows it.
// The runner bounds how long it waits for Invoke regardless.
type ToolInvoker interface {
	Invoke(ctx context.Context, config map[string]any, input map[string]any) (map[string]any, error)
}

// InvokerFunc adapts a plain function to the ToolInvoker interface.
type InvokerFunc func(ctx context.Context, config map[string]any, input map[string]any) (map[string]any, error)

// Invoke calls the wrapped function.
func (f InvokerFunc) Invoke(ctx context.Context, config map[string]any, input map[string]any) (map[string]any, error) {
	return f(ctx, config, input)
}
