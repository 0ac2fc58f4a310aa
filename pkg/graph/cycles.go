package graph

import (
	"fmt"

	"github.com/visionflowai/visionflow-oss/pkg/domain"
)

type nodeColor uint8

const (
	white nodeColor = iota // unvisited
	gray                   // in the current recursion stack
	black                  // fully explored, known cycle-free
)

// detectCycle runs a depth-first traversal with three-color marking over the
// graph. An edge into a gray node closes a cycle; the first such edge found
// (in deterministic traversal order) is reported and no ordering is
// attempted. Returns nil when the graph is acyclic.
func detectCycle(ids []string, adjacency map[string][]string) *domain.ValidationIssue {
	colors := make(map[string]nodeColor, len(ids))

	var closing *domain.PipelineEdge
	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = gray
		for _, next := range adjacency[id] {
			switch colors[next] {
			case gray:
				closing = &domain.PipelineEdge{From: id, To: next}
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		colors[id] = black
		return false
	}

	for _, id := range ids {
		if colors[id] == white && visit(id) {
			return &domain.ValidationIssue{
				Edge:   closing,
				Reason: fmt.Sprintf("cycle detected: edge %s closes a cycle", closing),
			}
		}
	}
	return nil
}
