package domain

import (
	"encoding/json"
	"time"
)

// ErrorType classifies a failure crossing the execution boundary.
type ErrorType string

const (
	// ErrorTypeValidation covers bad pipeline shape, cycles, unknown tools,
	// type-incompatible edges and bad node input. Always raised before any
	// tool executes.
	ErrorTypeValidation ErrorType = "ValidationError"
	// ErrorTypePlugin covers domain-specific failures raised by a tool's own code.
	ErrorTypePlugin ErrorType = "PluginError"
	// ErrorTypeExecution covers generic runtime failures, bad or nil output
	// and timeouts.
	ErrorTypeExecution ErrorType = "ExecutionError"
	// ErrorTypeInternal covers unexpected failures inside the executor or
	// validator themselves. Always surfaced, never swallowed.
	ErrorTypeInternal ErrorType = "InternalError"
)

// ErrorEnvelope is the structured, traceback-free representation of any
// failure crossing the execution boundary. Trace is internal-only: it is
// available to logging collaborators but never serialized to callers.
type ErrorEnvelope struct {
	Type      ErrorType      `json:"type"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details"`
	Tool      string         `json:"tool"`
	Timestamp time.Time      `json:"timestamp"`
	Trace     string         `json:"-"`
}

// NewEnvelope constructs an envelope stamped with the current UTC time.
// tool may be empty for failures not attributable to a single tool.
func NewEnvelope(t ErrorType, message, tool string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Type:      t,
		Message:   message,
		Details:   map[string]any{},
		Tool:      tool,
		Timestamp: time.Now().UTC(),
	}
}

// WithDetail attaches a key/value pair to the envelope's details map.
func (e *ErrorEnvelope) WithDetail(key string, value any) *ErrorEnvelope {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// WithTrace attaches an internal-only trace. The trace is excluded from the
// wire shape and must never be echoed to callers.
func (e *ErrorEnvelope) WithTrace(trace string) *ErrorEnvelope {
	e.Trace = trace
	return e
}

// envelopeWire is the public-facing shape of an envelope.
type envelopeWire struct {
	Type      ErrorType      `json:"type"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details"`
	Tool      *string        `json:"tool"`
	Timestamp string         `json:"timestamp"`
}

// MarshalJSON serializes the wire shape
// {"error": {"type": ..., "message": ..., "details": {}, "tool": ..., "timestamp": ...}}.
// Tool is null when the failure is not attributable to a tool, and the
// internal trace is never included.
func (e *ErrorEnvelope) MarshalJSON() ([]byte, error) {
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	var tool *string
	if e.Tool != "" {
		tool = &e.Tool
	}
	return json.Marshal(map[string]envelopeWire{
		"error": {
			Type:      e.Type,
			Message:   e.Message,
			Details:   details,
			Tool:      tool,
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
		},
	})
}

// UnmarshalJSON accepts the wire shape produced by MarshalJSON.
func (e *ErrorEnvelope) UnmarshalJSON(data []byte) error {
	var wrapper map[string]envelopeWire
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}
	wire := wrapper["error"]
	e.Type = wire.Type
	e.Message = wire.Message
	e.Details = wire.Details
	if wire.Tool != nil {
		e.Tool = *wire.Tool
	} else {
		e.Tool = ""
	}
	if wire.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339Nano, wire.Timestamp)
		if err != nil {
			return err
		}
		e.Timestamp = ts
	}
	return nil
}
