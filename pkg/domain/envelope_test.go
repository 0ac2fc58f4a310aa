package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeWireShape(t *testing.T) {
	env := NewEnvelope(ErrorTypePlugin, "model weights missing", "image.detect").
		WithDetail("model", "yolo-v8")

	payload, err := json.Marshal(env)
	require.NoError(t, err)

	var wire map[string]map[string]any
	require.NoError(t, json.Unmarshal(payload, &wire))

	inner, ok := wire["error"]
	require.True(t, ok, "envelope must be wrapped under an error key")
	assert.Equal(t, "PluginError", inner["type"])
	assert.Equal(t, "model weights missing", inner["message"])
	assert.Equal(t, "image.detect", inner["tool"])
	assert.Equal(t, map[string]any{"model": "yolo-v8"}, inner["details"])

	ts, ok := inner["timestamp"].(string)
	require.True(t, ok)
	_, err = time.Parse(time.RFC3339Nano, ts)
	assert.NoError(t, err)
}

func TestEnvelopeTraceNeverSerialized(t *testing.T) {
	env := NewEnvelope(ErrorTypeExecution, "tool panicked", "image.detect").
		WithTrace("goroutine 1 [running]:\nmain.crash()")

	payload, err := json.Marshal(env)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "goroutine")
	assert.NotContains(t, string(payload), "trace")
}

func TestEnvelopeToolNullWhenUnattributable(t *testing.T) {
	env := NewEnvelope(ErrorTypeValidation, "pipeline failed validation", "")

	payload, err := json.Marshal(env)
	require.NoError(t, err)

	var wire map[string]map[string]any
	require.NoError(t, json.Unmarshal(payload, &wire))
	tool, present := wire["error"]["tool"]
	require.True(t, present)
	assert.Nil(t, tool)
}

func TestEnvelopeDetailsAlwaysObject(t *testing.T) {
	env := &ErrorEnvelope{Type: ErrorTypeInternal, Message: "boom"}

	payload, err := json.Marshal(env)
	require.NoError(t, err)

	var wire map[string]map[string]any
	require.NoError(t, json.Unmarshal(payload, &wire))
	assert.Equal(t, map[string]any{}, wire["error"]["details"])
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env := NewEnvelope(ErrorTypeExecution, "timed out", "slow.tool").
		WithDetail("reason", "timeout").
		WithTrace("internal only")

	payload, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded ErrorEnvelope
	require.NoError(t, json.Unmarshal(payload, &decoded))

	assert.Equal(t, env.Type, decoded.Type)
	assert.Equal(t, env.Message, decoded.Message)
	assert.Equal(t, env.Tool, decoded.Tool)
	assert.Equal(t, "timeout", decoded.Details["reason"])
	assert.Empty(t, decoded.Trace, "trace must not survive the wire")
	assert.WithinDuration(t, env.Timestamp, decoded.Timestamp, time.Millisecond)
}
