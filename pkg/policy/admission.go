// Package policy evaluates Rego admission policies over pipeline definitions
// before graph validation. Admission is an optional gate: operators use it to
// enforce organisational ceilings (node counts, required tool capabilities)
// without touching the engine.
package policy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"

	"github.com/visionflowai/visionflow-oss/pkg/domain"
)

const defaultEntrypoint = "visionflow/admission"

// Options control admission engine construction.
type Options struct {
	// Entrypoint is the policy decision path (default "visionflow/admission").
	Entrypoint string
	// Modules contains the Rego modules to load, keyed by file name.
	Modules map[string]string
}

// Decision is the outcome of evaluating a pipeline against the admission policy.
type Decision struct {
	Allow   bool
	Reasons []string
}

// Engine evaluates pipeline admission decisions using an embedded OPA instance.
type Engine struct {
	entrypoint string
	prepared   rego.PreparedEvalQuery
}

// NewEngine parses and compiles the supplied Rego modules and prepares the
// entrypoint query, surfacing syntax errors at construction time.
func NewEngine(ctx context.Context, opts Options) (*Engine, error) {
	entry := strings.TrimSpace(opts.Entrypoint)
	if entry == "" {
		entry = defaultEntrypoint
	}

	if len(opts.Modules) == 0 {
		return nil, errors.New("admission engine requires at least one rego module")
	}

	names := make([]string, 0, len(opts.Modules))
	for name := range opts.Modules {
		names = append(names, name)
	}
	sort.Strings(names)

	regoOpts := make([]func(*rego.Rego), 0, len(names)+1)
	regoOpts = append(regoOpts, rego.Query("data."+strings.ReplaceAll(entry, "/", ".")))
	for _, name := range names {
		module, err := ast.ParseModuleWithOpts(name, opts.Modules[name], ast.ParserOptions{RegoVersion: ast.RegoV1})
		if err != nil {
			return nil, fmt.Errorf("parse rego module %q: %w", name, err)
		}
		regoOpts = append(regoOpts, rego.ParsedModule(module))
	}

	prepared, err := rego.New(regoOpts...).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile rego modules: %w", err)
	}

	return &Engine{entrypoint: entry, prepared: prepared}, nil
}

// Evaluate runs the admission policy over the pipeline's wire shape.
// A policy that produces no decision admits the pipeline: admission is a
// deny-list gate, and graph validation still runs afterwards.
func (e *Engine) Evaluate(ctx context.Context, p *domain.Pipeline) (Decision, error) {
	results, err := e.prepared.Eval(ctx, rego.EvalInput(pipelineInput(p)))
	if err != nil {
		return Decision{}, fmt.Errorf("admission decision: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{Allow: true}, nil
	}

	switch value := results[0].Expressions[0].Value.(type) {
	case bool:
		return Decision{Allow: value}, nil
	case map[string]any:
		allow, _ := value["allow"].(bool)
		return Decision{Allow: allow, Reasons: parseReasons(value["reasons"])}, nil
	default:
		return Decision{}, fmt.Errorf("admission decision: unexpected result type %T", value)
	}
}

// pipelineInput renders the pipeline the way callers submit it, so policies
// are written against the documented wire shape rather than Go types.
func pipelineInput(p *domain.Pipeline) map[string]any {
	nodes := make([]any, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		nodes = append(nodes, map[string]any{
			"id":     n.ID,
			"tool":   n.Tool,
			"config": n.Config,
		})
	}
	edges := make([]any, 0, len(p.Edges))
	for _, e := range p.Edges {
		edges = append(edges, map[string]any{
			"from":       e.From,
			"to":         e.To,
			"output_key": e.OutputKey,
			"input_key":  e.InputKey,
		})
	}
	return map[string]any{
		"id":    p.ID,
		"nodes": nodes,
		"edges": edges,
	}
}

func parseReasons(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	reasons := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			reasons = append(reasons, s)
		}
	}
	return reasons
}
