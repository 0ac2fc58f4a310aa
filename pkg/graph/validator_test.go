package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionflowai/visionflow-oss/pkg/domain"
)

// stubCatalog satisfies ToolLookup without dragging in the real catalog.
type stubCatalog map[string]domain.ToolMetadata

func (s stubCatalog) Lookup(name string) (domain.ToolMetadata, bool) {
	meta, ok := s[name]
	return meta, ok
}

func analysisCatalog() stubCatalog {
	return stubCatalog{
		"resize": {
			Name:        "resize",
			InputTypes:  []string{"image"},
			OutputTypes: []string{"image"},
		},
		"detect": {
			Name:        "detect",
			InputTypes:  []string{"image"},
			OutputTypes: []string{"detections"},
		},
		"report": {
			Name:        "report",
			InputTypes:  []string{"detections", "stats"},
			OutputTypes: []string{"text"},
		},
		"tokenize": {
			Name:        "tokenize",
			InputTypes:  []string{"text"},
			OutputTypes: []string{"tokens"},
		},
	}
}

func TestValidateLinearPipeline(t *testing.T) {
	p := &domain.Pipeline{
		Nodes: []domain.PipelineNode{
			{ID: "a", Tool: "resize"},
			{ID: "b", Tool: "detect"},
			{ID: "c", Tool: "report"},
		},
		Edges: []domain.PipelineEdge{
			{From: "a", To: "b"},
			{From: "b", To: "c"},
		},
	}

	result := Validate(p, analysisCatalog())

	require.True(t, result.Valid)
	require.Empty(t, result.Errors)
	assert.Equal(t, []string{"a", "b", "c"}, result.Order)
}

func TestValidateOrderBreaksTiesByNodeID(t *testing.T) {
	// Two independent roots feeding one sink. Both roots are ready at the
	// same time; the order must pick them by ascending id.
	p := &domain.Pipeline{
		Nodes: []domain.PipelineNode{
			{ID: "z-root", Tool: "detect"},
			{ID: "a-root", Tool: "detect"},
			{ID: "sink", Tool: "report"},
		},
		Edges: []domain.PipelineEdge{
			{From: "z-root", To: "sink"},
			{From: "a-root", To: "sink"},
		},
	}

	result := Validate(p, analysisCatalog())

	require.True(t, result.Valid)
	assert.Equal(t, []string{"a-root", "z-root", "sink"}, result.Order)
}

func TestValidateIsDeterministic(t *testing.T) {
	p := &domain.Pipeline{
		Nodes: []domain.PipelineNode{
			{ID: "n3", Tool: "detect"},
			{ID: "n1", Tool: "detect"},
			{ID: "n2", Tool: "detect"},
			{ID: "end", Tool: "report"},
		},
		Edges: []domain.PipelineEdge{
			{From: "n1", To: "end"},
			{From: "n2", To: "end"},
			{From: "n3", To: "end"},
		},
	}
	catalog := analysisCatalog()

	first := Validate(p, catalog)
	for i := 0; i < 10; i++ {
		again := Validate(p, catalog)
		require.Equal(t, first, again)
	}
}

func TestValidateCycle(t *testing.T) {
	p := &domain.Pipeline{
		Nodes: []domain.PipelineNode{
			{ID: "a", Tool: "resize"},
			{ID: "b", Tool: "resize"},
			{ID: "c", Tool: "resize"},
		},
		Edges: []domain.PipelineEdge{
			{From: "a", To: "b"},
			{From: "b", To: "c"},
			{From: "c", To: "a"},
		},
	}

	result := Validate(p, analysisCatalog())

	require.False(t, result.Valid)
	require.Empty(t, result.Order)
	require.Len(t, result.Errors, 1)

	issue := result.Errors[0]
	require.NotNil(t, issue.Edge)
	assert.Equal(t, "c", issue.Edge.From)
	assert.Equal(t, "a", issue.Edge.To)
	assert.Contains(t, issue.Reason, "cycle")
	assert.Contains(t, issue.Reason, "c->a")
}

func TestValidateTypeMismatch(t *testing.T) {
	// tokenize produces tokens; resize only accepts image.
	p := &domain.Pipeline{
		Nodes: []domain.PipelineNode{
			{ID: "t", Tool: "tokenize"},
			{ID: "r", Tool: "resize"},
		},
		Edges: []domain.PipelineEdge{
			{From: "t", To: "r"},
		},
	}

	result := Validate(p, analysisCatalog())

	require.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	issue := result.Errors[0]
	require.NotNil(t, issue.Edge)
	assert.Equal(t, "t", issue.Edge.From)
	assert.Equal(t, "r", issue.Edge.To)
	assert.Contains(t, issue.Reason, "type mismatch")
}

func TestValidateReportsEveryIncompatibleEdge(t *testing.T) {
	p := &domain.Pipeline{
		Nodes: []domain.PipelineNode{
			{ID: "t1", Tool: "tokenize"},
			{ID: "t2", Tool: "tokenize"},
			{ID: "r", Tool: "resize"},
		},
		Edges: []domain.PipelineEdge{
			{From: "t1", To: "r"},
			{From: "t2", To: "r"},
		},
	}

	result := Validate(p, analysisCatalog())

	require.False(t, result.Valid)
	assert.Len(t, result.Errors, 2)
}

func TestValidateUnknownTool(t *testing.T) {
	p := &domain.Pipeline{
		Nodes: []domain.PipelineNode{
			{ID: "a", Tool: "resize"},
			{ID: "b", Tool: "does-not-exist"},
		},
		Edges: []domain.PipelineEdge{
			{From: "a", To: "b"},
		},
	}

	result := Validate(p, analysisCatalog())

	require.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "b", result.Errors[0].NodeID)
	assert.Contains(t, result.Errors[0].Reason, `unknown tool "does-not-exist"`)
}

func TestValidateSelfLoop(t *testing.T) {
	p := &domain.Pipeline{
		Nodes: []domain.PipelineNode{
			{ID: "a", Tool: "resize"},
		},
		Edges: []domain.PipelineEdge{
			{From: "a", To: "a"},
		},
	}

	result := Validate(p, analysisCatalog())

	require.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Reason, "self-loop")
}

func TestValidateDanglingEdge(t *testing.T) {
	p := &domain.Pipeline{
		Nodes: []domain.PipelineNode{
			{ID: "a", Tool: "resize"},
		},
		Edges: []domain.PipelineEdge{
			{From: "a", To: "ghost"},
		},
	}

	result := Validate(p, analysisCatalog())

	require.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Reason, `unknown node "ghost"`)
}

func TestValidateDuplicateNodeID(t *testing.T) {
	p := &domain.Pipeline{
		Nodes: []domain.PipelineNode{
			{ID: "a", Tool: "resize"},
			{ID: "a", Tool: "detect"},
		},
	}

	result := Validate(p, analysisCatalog())

	require.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "a", result.Errors[0].NodeID)
	assert.Contains(t, result.Errors[0].Reason, "duplicate node id")
}

func TestValidateEmptyPipeline(t *testing.T) {
	for name, p := range map[string]*domain.Pipeline{
		"nil":      nil,
		"no nodes": {},
	} {
		t.Run(name, func(t *testing.T) {
			result := Validate(p, analysisCatalog())
			require.False(t, result.Valid)
			require.Len(t, result.Errors, 1)
			assert.Equal(t, domain.ErrEmptyPipeline.Error(), result.Errors[0].Reason)
		})
	}
}

func TestValidateSingleNode(t *testing.T) {
	p := &domain.Pipeline{
		Nodes: []domain.PipelineNode{{ID: "only", Tool: "resize"}},
	}

	result := Validate(p, analysisCatalog())

	require.True(t, result.Valid)
	assert.Equal(t, []string{"only"}, result.Order)
}

// orderRespectsEdges checks that every edge's producer precedes its consumer.
func orderRespectsEdges(t *testing.T, order []string, edges []domain.PipelineEdge) {
	t.Helper()
	position := make(map[string]int, len(order))
	for i, id := range order {
		position[id] = i
	}
	for _, e := range edges {
		from, okFrom := position[e.From]
		to, okTo := position[e.To]
		require.True(t, okFrom, "producer %q missing from order", e.From)
		require.True(t, okTo, "consumer %q missing from order", e.To)
		require.Less(t, from, to, "edge %s violated by order %v", e, order)
	}
}

func TestValidateDiamond(t *testing.T) {
	p := &domain.Pipeline{
		Nodes: []domain.PipelineNode{
			{ID: "src", Tool: "resize"},
			{ID: "left", Tool: "detect"},
			{ID: "right", Tool: "detect"},
			{ID: "sink", Tool: "report"},
		},
		Edges: []domain.PipelineEdge{
			{From: "src", To: "left"},
			{From: "src", To: "right"},
			{From: "left", To: "sink"},
			{From: "right", To: "sink"},
		},
	}

	result := Validate(p, analysisCatalog())

	require.True(t, result.Valid)
	require.Len(t, result.Order, 4)
	orderRespectsEdges(t, result.Order, p.Edges)
	assert.Equal(t, "src", result.Order[0])
	assert.Equal(t, "sink", result.Order[3])
}
