package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrEmptyPipeline     = errors.New("pipeline has no nodes")
	ErrToolNotFound      = errors.New("tool not found in catalog")
	ErrDuplicateTool     = errors.New("tool already registered")
	ErrNilInvoker        = errors.New("tool invoker is nil")
	ErrInvokerNotFound   = errors.New("no invoker registered for tool")
	ErrPipelineRejected  = errors.New("pipeline failed validation")
	ErrManifestMalformed = errors.New("tool manifest is malformed")
)

// ValidationError is raised when a tool's input fails shape validation or a
// pipeline definition is structurally unsound. It is always produced before
// any tool executes and is never retried.
type ValidationError struct {
	Message string
	Details map[string]any
}

func (e *ValidationError) Error() string {
	return e.Message
}

// PluginError wraps a domain-specific failure raised by a tool's own code.
type PluginError struct {
	Tool    string
	Message string
	Err     error
}

func (e *PluginError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("plugin %q failed", e.Tool)
}

func (e *PluginError) Unwrap() error {
	return e.Err
}
