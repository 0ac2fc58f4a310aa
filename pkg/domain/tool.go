package domain

// ToolMetadata is the read-only manifest entry for a registered tool.
// Immutable once loaded; owned by the catalog.
type ToolMetadata struct {
	Name         string   `json:"name" yaml:"name"`
	InputTypes   []string `json:"input_types" yaml:"input_types"`
	OutputTypes  []string `json:"output_types" yaml:"output_types"`
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
}

// HasCapability reports whether the tool declares the given capability tag.
func (m ToolMetadata) HasCapability(cap string) bool {
	for _, c := range m.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// TypesCompatible reports whether a producer's output types overlap a
// consumer's input types. An edge between two tools is valid iff the
// intersection is non-empty.
func TypesCompatible(outputs, inputs []string) bool {
	for _, o := range outputs {
		for _, i := range inputs {
			if o == i {
				return true
			}
		}
	}
	return false
}

// LifecycleState is the coarse status of a tool's most recent invocation,
// tracked per tool in the metrics registry.
type LifecycleState string

const (
	// LifecycleLoaded is the state assigned at registration, before any invocation.
	LifecycleLoaded LifecycleState = "LOADED"
	// LifecycleInitialized marks a tool whose last invocation completed successfully.
	LifecycleInitialized LifecycleState = "INITIALIZED"
	// LifecycleRunning is reserved for executors that expose in-flight state.
	// The registry is only mutated at invocation finalization, so this state
	// is never persisted by the sequential executor.
	LifecycleRunning LifecycleState = "RUNNING"
	// LifecycleFailed marks a tool whose last invocation ended in any error.
	LifecycleFailed LifecycleState = "FAILED"
	// LifecycleUnavailable marks a tool short-circuited by an open circuit breaker.
	LifecycleUnavailable LifecycleState = "UNAVAILABLE"
)
