// Package tools provides the builtin in-process analysis tools shipped with
// the engine. External plugin packaging and loading are collaborator
// concerns; these invokers exist so the CLI and tests can exercise the full
// governed execution path without any plugin infrastructure.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/visionflowai/visionflow-oss/pkg/catalog"
	"github.com/visionflowai/visionflow-oss/pkg/domain"
	"github.com/visionflowai/visionflow-oss/pkg/engine/runtime"
)

// RegisterBuiltins adds the builtin analysis tools to the catalog.
func RegisterBuiltins(c *catalog.Catalog) error {
	builtins := []struct {
		meta    domain.ToolMetadata
		invoker runtime.ToolInvoker
	}{
		{
			meta: domain.ToolMetadata{
				Name:         "text.tokenize",
				InputTypes:   []string{"text"},
				OutputTypes:  []string{"tokens"},
				Capabilities: []string{"analysis", "builtin"},
			},
			invoker: runtime.InvokerFunc(tokenize),
		},
		{
			meta: domain.ToolMetadata{
				Name:         "text.stats",
				InputTypes:   []string{"tokens", "text"},
				OutputTypes:  []string{"stats"},
				Capabilities: []string{"analysis", "builtin"},
			},
			invoker: runtime.InvokerFunc(stats),
		},
		{
			meta: domain.ToolMetadata{
				Name:         "merge.concat",
				InputTypes:   []string{"text", "tokens", "stats"},
				OutputTypes:  []string{"text"},
				Capabilities: []string{"aggregate", "builtin"},
			},
			invoker: runtime.InvokerFunc(concat),
		},
	}

	for _, b := range builtins {
		if err := c.Register(b.meta, b.invoker); err != nil {
			return err
		}
	}
	return nil
}

// firstString returns the first string value in the input, scanning keys in
// sorted order so the choice is deterministic when several are present.
func firstString(input map[string]any) (string, bool) {
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s, ok := input[k].(string); ok {
			return s, true
		}
	}
	return "", false
}

// tokenize splits the input text into whitespace-separated tokens.
func tokenize(_ context.Context, config, input map[string]any) (map[string]any, error) {
	text, ok := firstString(input)
	if !ok {
		return nil, &domain.ValidationError{Message: "text.tokenize: no string value in input"}
	}

	tokens := strings.Fields(text)
	if lower, _ := config["lowercase"].(bool); lower {
		for i, t := range tokens {
			tokens[i] = strings.ToLower(t)
		}
	}

	out := make([]any, len(tokens))
	for i, t := range tokens {
		out[i] = t
	}
	return map[string]any{
		"result": out,
		"count":  len(tokens),
	}, nil
}

// stats computes token frequency statistics.
func stats(_ context.Context, _, input map[string]any) (map[string]any, error) {
	var tokens []string
	for _, v := range input {
		switch items := v.(type) {
		case []any:
			for _, item := range items {
				if s, ok := item.(string); ok {
					tokens = append(tokens, s)
				}
			}
		case string:
			tokens = append(tokens, strings.Fields(items)...)
		}
	}
	if len(tokens) == 0 {
		return nil, &domain.PluginError{Tool: "text.stats", Message: "text.stats: input carries no tokens"}
	}

	freq := make(map[string]any, len(tokens))
	unique := 0
	for _, t := range tokens {
		if _, seen := freq[t]; !seen {
			unique++
			freq[t] = 0
		}
		freq[t] = freq[t].(int) + 1
	}

	return map[string]any{
		"result": freq,
		"total":  len(tokens),
		"unique": unique,
	}, nil
}

// concat joins every string-renderable value in the input, ordered by key.
func concat(_ context.Context, config, input map[string]any) (map[string]any, error) {
	separator := " "
	if s, ok := config["separator"].(string); ok {
		separator = s
	}

	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := input[k].(type) {
		case string:
			parts = append(parts, v)
		case []any:
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
		default:
			parts = append(parts, fmt.Sprint(v))
		}
	}

	return map[string]any{"result": strings.Join(parts, separator)}, nil
}
