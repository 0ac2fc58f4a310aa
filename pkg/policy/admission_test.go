package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionflowai/visionflow-oss/pkg/domain"
)

const nodeBudgetPolicy = `package visionflow.admission

default allow := false

allow if count(input.nodes) <= 3

reasons contains msg if {
	count(input.nodes) > 3
	msg := "pipeline exceeds the node budget"
}
`

const capabilityPolicy = `package visionflow.admission

default allow := false

allow if {
	every node in input.nodes {
		not startswith(node.tool, "shell.")
	}
}

reasons contains msg if {
	some node in input.nodes
	startswith(node.tool, "shell.")
	msg := sprintf("tool %q is not admissible", [node.tool])
}
`

func pipelineWithNodes(n int) *domain.Pipeline {
	p := &domain.Pipeline{ID: "test"}
	for i := 0; i < n; i++ {
		p.Nodes = append(p.Nodes, domain.PipelineNode{
			ID:   string(rune('a' + i)),
			Tool: "image.detect",
		})
	}
	return p
}

func TestEngineAllowsWithinBudget(t *testing.T) {
	engine, err := NewEngine(context.Background(), Options{
		Modules: map[string]string{"budget.rego": nodeBudgetPolicy},
	})
	require.NoError(t, err)

	decision, err := engine.Evaluate(context.Background(), pipelineWithNodes(2))
	require.NoError(t, err)
	assert.True(t, decision.Allow)
	assert.Empty(t, decision.Reasons)
}

func TestEngineDeniesOverBudget(t *testing.T) {
	engine, err := NewEngine(context.Background(), Options{
		Modules: map[string]string{"budget.rego": nodeBudgetPolicy},
	})
	require.NoError(t, err)

	decision, err := engine.Evaluate(context.Background(), pipelineWithNodes(5))
	require.NoError(t, err)
	assert.False(t, decision.Allow)
	require.Len(t, decision.Reasons, 1)
	assert.Equal(t, "pipeline exceeds the node budget", decision.Reasons[0])
}

func TestEngineDeniesByToolName(t *testing.T) {
	engine, err := NewEngine(context.Background(), Options{
		Modules: map[string]string{"caps.rego": capabilityPolicy},
	})
	require.NoError(t, err)

	p := &domain.Pipeline{
		Nodes: []domain.PipelineNode{
			{ID: "a", Tool: "image.detect"},
			{ID: "b", Tool: "shell.exec"},
		},
	}

	decision, err := engine.Evaluate(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, decision.Allow)
	require.Len(t, decision.Reasons, 1)
	assert.Contains(t, decision.Reasons[0], "shell.exec")
}

func TestEngineCustomEntrypoint(t *testing.T) {
	const policy = `package acme.gate

default allow := false

allow if input.id == "approved"
`
	engine, err := NewEngine(context.Background(), Options{
		Entrypoint: "acme/gate",
		Modules:    map[string]string{"gate.rego": policy},
	})
	require.NoError(t, err)

	decision, err := engine.Evaluate(context.Background(), &domain.Pipeline{ID: "approved"})
	require.NoError(t, err)
	assert.True(t, decision.Allow)

	decision, err = engine.Evaluate(context.Background(), &domain.Pipeline{ID: "other"})
	require.NoError(t, err)
	assert.False(t, decision.Allow)
}

func TestEngineUndefinedDecisionAdmits(t *testing.T) {
	// The loaded module never defines the entrypoint path; an undefined
	// decision admits the pipeline.
	const unrelated = `package acme.unrelated

flag := true
`
	engine, err := NewEngine(context.Background(), Options{
		Modules: map[string]string{"unrelated.rego": unrelated},
	})
	require.NoError(t, err)

	decision, err := engine.Evaluate(context.Background(), pipelineWithNodes(1))
	require.NoError(t, err)
	assert.True(t, decision.Allow)
}

func TestEngineRejectsSyntaxErrors(t *testing.T) {
	_, err := NewEngine(context.Background(), Options{
		Modules: map[string]string{"broken.rego": "package visionflow.admission\n\nallow if {"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.rego")
}

func TestEngineRequiresModules(t *testing.T) {
	_, err := NewEngine(context.Background(), Options{})
	require.Error(t, err)
}
