// Package graph validates pipeline definitions against the tool catalog:
// cycle detection, topological ordering and per-edge type compatibility.
// Validation never partially succeeds; every discovered problem is reported
// together and an ordering is only produced for a fully valid graph.
package graph

import (
	"fmt"
	"sort"

	"github.com/visionflowai/visionflow-oss/pkg/domain"
)

// ToolLookup is the slice of the catalog the validator needs.
type ToolLookup interface {
	Lookup(name string) (domain.ToolMetadata, bool)
}

// Validate checks a pipeline against the catalog and returns the aggregated
// result. The returned order is deterministic: ties between zero-indegree
// nodes are broken by ascending node id, so repeated calls on the same input
// always yield the same order and the same errors.
func Validate(p *domain.Pipeline, catalog ToolLookup) domain.ValidationResult {
	var issues []domain.ValidationIssue

	if p == nil || len(p.Nodes) == 0 {
		return domain.ValidationResult{
			Valid:  false,
			Errors: []domain.ValidationIssue{{Reason: domain.ErrEmptyPipeline.Error()}},
		}
	}

	// Index nodes, rejecting duplicates. The first occurrence wins so later
	// checks still have a node to refer to.
	nodes := make(map[string]*domain.PipelineNode, len(p.Nodes))
	ids := make([]string, 0, len(p.Nodes))
	for i := range p.Nodes {
		node := &p.Nodes[i]
		if node.ID == "" {
			issues = append(issues, domain.ValidationIssue{Reason: "node with empty id"})
			continue
		}
		if _, dup := nodes[node.ID]; dup {
			issues = append(issues, domain.ValidationIssue{
				NodeID: node.ID,
				Reason: fmt.Sprintf("duplicate node id %q", node.ID),
			})
			continue
		}
		nodes[node.ID] = node
		ids = append(ids, node.ID)
	}
	sort.Strings(ids)

	// Unknown tool references. Such nodes stay in the graph for structural
	// checks but the pipeline cannot be ordered while any exist.
	for _, id := range ids {
		node := nodes[id]
		if _, ok := catalog.Lookup(node.Tool); !ok {
			issues = append(issues, domain.ValidationIssue{
				NodeID: id,
				Reason: fmt.Sprintf("unknown tool %q", node.Tool),
			})
		}
	}

	// Edge checks: endpoints, self-loops, type compatibility. Incompatible
	// edges are reported individually rather than short-circuiting.
	adjacency := make(map[string][]string, len(nodes))
	indegree := make(map[string]int, len(nodes))
	for i := range p.Edges {
		edge := p.Edges[i]
		edgeRef := edge

		if edge.From == edge.To {
			issues = append(issues, domain.ValidationIssue{
				Edge:   &edgeRef,
				Reason: fmt.Sprintf("self-loop on node %q", edge.From),
			})
			continue
		}

		from, fromOK := nodes[edge.From]
		to, toOK := nodes[edge.To]
		if !fromOK || !toOK {
			missing := edge.From
			if fromOK {
				missing = edge.To
			}
			issues = append(issues, domain.ValidationIssue{
				Edge:   &edgeRef,
				Reason: fmt.Sprintf("edge references unknown node %q", missing),
			})
			continue
		}

		fromMeta, fromKnown := catalog.Lookup(from.Tool)
		toMeta, toKnown := catalog.Lookup(to.Tool)
		if fromKnown && toKnown && !domain.TypesCompatible(fromMeta.OutputTypes, toMeta.InputTypes) {
			issues = append(issues, domain.ValidationIssue{
				Edge: &edgeRef,
				Reason: fmt.Sprintf("type mismatch: %q outputs %v, %q accepts %v",
					from.Tool, fromMeta.OutputTypes, to.Tool, toMeta.InputTypes),
			})
		}

		adjacency[edge.From] = append(adjacency[edge.From], edge.To)
		indegree[edge.To]++
	}

	// Deterministic traversal order regardless of map iteration.
	for from := range adjacency {
		sort.Strings(adjacency[from])
	}

	if cycleIssue := detectCycle(ids, adjacency); cycleIssue != nil {
		issues = append(issues, *cycleIssue)
	}

	if len(issues) > 0 {
		return domain.ValidationResult{Valid: false, Errors: issues}
	}

	return domain.ValidationResult{
		Valid: true,
		Order: topologicalOrder(ids, adjacency, indegree),
	}
}
