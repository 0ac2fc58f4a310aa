package domain

// ValidationIssue describes one problem discovered during graph validation.
// NodeID is set for node-scoped issues (unknown tool, duplicate id) and Edge
// for edge-scoped ones (dangling endpoint, self-loop, cycle, type mismatch).
type ValidationIssue struct {
	NodeID string        `json:"node_id,omitempty"`
	Edge   *PipelineEdge `json:"edge,omitempty"`
	Reason string        `json:"reason"`
}

// ValidationResult aggregates everything the validator found. Valid is false
// if any issue exists, and Order is present iff Valid is true.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Order  []string          `json:"order,omitempty"`
	Errors []ValidationIssue `json:"errors,omitempty"`
}

// RunReport is the caller-facing result of executing a pipeline.
// On failure, Results holds the outputs of every node that completed before
// the failing one, StagesExecuted counts completed nodes including the failed
// one, and Error carries the failing node's envelope.
type RunReport struct {
	RunID          string                    `json:"run_id,omitempty"`
	OK             bool                      `json:"ok"`
	Results        map[string]map[string]any `json:"results"`
	StagesExecuted int                       `json:"stages_executed"`
	StageFailed    string                    `json:"stage_failed,omitempty"`
	Error          *ErrorEnvelope            `json:"error,omitempty"`
	ElapsedMS      int64                     `json:"elapsed_ms,omitempty"`
}
