package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionflowai/visionflow-oss/pkg/catalog"
	"github.com/visionflowai/visionflow-oss/pkg/domain"
)

func builtinCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := catalog.New(nil)
	require.NoError(t, RegisterBuiltins(c))
	return c
}

func invoke(t *testing.T, c *catalog.Catalog, tool string, config, input map[string]any) (map[string]any, error) {
	t.Helper()
	invoker, ok := c.Invoker(tool)
	require.True(t, ok, "builtin %q not registered", tool)
	return invoker.Invoke(context.Background(), config, input)
}

func TestRegisterBuiltins(t *testing.T) {
	c := builtinCatalog(t)

	for _, name := range []string{"text.tokenize", "text.stats", "merge.concat"} {
		meta, ok := c.Lookup(name)
		require.True(t, ok, "missing builtin %q", name)
		assert.NotEmpty(t, meta.InputTypes)
		assert.NotEmpty(t, meta.OutputTypes)
		assert.True(t, meta.HasCapability("builtin"))
	}
}

func TestTokenize(t *testing.T) {
	c := builtinCatalog(t)

	out, err := invoke(t, c, "text.tokenize", nil, map[string]any{"text": "The quick Fox"})
	require.NoError(t, err)
	assert.Equal(t, []any{"The", "quick", "Fox"}, out["result"])
	assert.Equal(t, 3, out["count"])
}

func TestTokenizeLowercase(t *testing.T) {
	c := builtinCatalog(t)

	out, err := invoke(t, c, "text.tokenize",
		map[string]any{"lowercase": true},
		map[string]any{"text": "The Quick FOX"})
	require.NoError(t, err)
	assert.Equal(t, []any{"the", "quick", "fox"}, out["result"])
}

func TestTokenizeRejectsNonString(t *testing.T) {
	c := builtinCatalog(t)

	_, err := invoke(t, c, "text.tokenize", nil, map[string]any{"frame": 42})
	require.Error(t, err)
	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestStats(t *testing.T) {
	c := builtinCatalog(t)

	out, err := invoke(t, c, "text.stats", nil, map[string]any{
		"result": []any{"a", "b", "a", "a"},
	})
	require.NoError(t, err)

	assert.Equal(t, 4, out["total"])
	assert.Equal(t, 2, out["unique"])
	freq, ok := out["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 3, freq["a"])
	assert.Equal(t, 1, freq["b"])
}

func TestStatsAcceptsRawText(t *testing.T) {
	c := builtinCatalog(t)

	out, err := invoke(t, c, "text.stats", nil, map[string]any{"text": "a b a"})
	require.NoError(t, err)
	assert.Equal(t, 3, out["total"])
	assert.Equal(t, 2, out["unique"])
}

func TestStatsRejectsEmptyInput(t *testing.T) {
	c := builtinCatalog(t)

	_, err := invoke(t, c, "text.stats", nil, map[string]any{"noise": 1})
	require.Error(t, err)
	var pluginErr *domain.PluginError
	require.ErrorAs(t, err, &pluginErr)
	assert.Equal(t, "text.stats", pluginErr.Tool)
}

func TestConcat(t *testing.T) {
	c := builtinCatalog(t)

	out, err := invoke(t, c, "merge.concat",
		map[string]any{"separator": ", "},
		map[string]any{
			"b": "world",
			"a": "hello",
		})
	require.NoError(t, err)
	assert.Equal(t, "hello, world", out["result"])
}

func TestConcatFlattensLists(t *testing.T) {
	c := builtinCatalog(t)

	out, err := invoke(t, c, "merge.concat", nil, map[string]any{
		"tokens": []any{"x", "y"},
	})
	require.NoError(t, err)
	assert.Equal(t, "x y", out["result"])
}
