package domain

import (
	"encoding/json"
	"fmt"
)

// DefaultEdgeKey is used when an edge does not name an explicit output or
// input key for threading a producer's result into a consumer's input.
const DefaultEdgeKey = "result"

// Pipeline is the in-memory representation of a tool composition graph.
// Instances are constructed transiently per execution request and never
// shared across runs, so no locking is required.
type Pipeline struct {
	ID    string         `json:"id,omitempty"`
	Nodes []PipelineNode `json:"nodes"`
	Edges []PipelineEdge `json:"edges"`
}

// PipelineNode is one tool invocation site within a pipeline.
type PipelineNode struct {
	ID     string         `json:"id"`
	Tool   string         `json:"tool"`
	Config map[string]any `json:"config,omitempty"`
}

// PipelineEdge states that the output of From feeds the input of To.
// OutputKey selects a value from the producer's result map and InputKey
// names the slot it lands in on the consumer side; both default to
// DefaultEdgeKey when empty.
type PipelineEdge struct {
	From      string `json:"from"`
	To        string `json:"to"`
	OutputKey string `json:"output_key,omitempty"`
	InputKey  string `json:"input_key,omitempty"`
}

// OutputKeyOrDefault returns the edge's output key, falling back to DefaultEdgeKey.
func (e PipelineEdge) OutputKeyOrDefault() string {
	if e.OutputKey != "" {
		return e.OutputKey
	}
	return DefaultEdgeKey
}

// InputKeyOrDefault returns the edge's input key, falling back to DefaultEdgeKey.
func (e PipelineEdge) InputKeyOrDefault() string {
	if e.InputKey != "" {
		return e.InputKey
	}
	return DefaultEdgeKey
}

// String renders the edge as "from->to" for error reporting.
func (e PipelineEdge) String() string {
	return fmt.Sprintf("%s->%s", e.From, e.To)
}

// DecodePipeline parses the JSON wire shape of a pipeline definition:
//
//	{"nodes": [{"id": ..., "tool": ..., "config": {...}}],
//	 "edges": [{"from": ..., "to": ..., "output_key": ..., "input_key": ...}]}
func DecodePipeline(data []byte) (*Pipeline, error) {
	var p Pipeline
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode pipeline definition: %w", err)
	}
	if len(p.Nodes) == 0 {
		return nil, fmt.Errorf("decode pipeline definition: %w", ErrEmptyPipeline)
	}
	return &p, nil
}

// NodeByID returns the node with the given id, or nil when absent.
func (p *Pipeline) NodeByID(id string) *PipelineNode {
	for i := range p.Nodes {
		if p.Nodes[i].ID == id {
			return &p.Nodes[i]
		}
	}
	return nil
}

// IncomingEdges returns the edges terminating at the given node, in
// definition order.
func (p *Pipeline) IncomingEdges(nodeID string) []PipelineEdge {
	var in []PipelineEdge
	for _, e := range p.Edges {
		if e.To == nodeID {
			in = append(in, e)
		}
	}
	return in
}
