package toolset

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "echoes its message argument" }
func (echoTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"message": map[string]any{"type": "string"}},
		"required":   []any{"message"},
	}
}
func (echoTool) Call(_ context.Context, args json.RawMessage) ReturnValue {
	var params struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(args, &params)
	return TextReturn(params.Message, "ok", "")
}

type panicTool struct{}

func (panicTool) Name() string                   { return "panic" }
func (panicTool) Description() string            { return "always panics" }
func (panicTool) Parameters() map[string]any     { return nil }
func (panicTool) Call(context.Context, json.RawMessage) ReturnValue {
	panic("boom")
}

func TestDispatchMissingToolIsSyntheticError(t *testing.T) {
	ts := New()
	result := ts.Dispatch(context.Background(), ToolCall{ID: "1", Name: "nope"}, nil)
	assert.True(t, result.ReturnValue.IsError)
	assert.Equal(t, "Tool `nope` not found", result.ReturnValue.Message)
}

func TestDispatchInvalidJSONArguments(t *testing.T) {
	ts := New()
	require.NoError(t, ts.Add(echoTool{}))
	result := ts.Dispatch(context.Background(), ToolCall{ID: "1", Name: "echo", Arguments: "{not json"}, nil)
	assert.True(t, result.ReturnValue.IsError)
	assert.Equal(t, "Invalid arguments", result.ReturnValue.Brief)
}

func TestDispatchSchemaValidationFailure(t *testing.T) {
	ts := New()
	require.NoError(t, ts.Add(echoTool{}))
	result := ts.Dispatch(context.Background(), ToolCall{ID: "1", Name: "echo", Arguments: "{}"}, nil)
	assert.True(t, result.ReturnValue.IsError)
	assert.Equal(t, "Invalid arguments", result.ReturnValue.Brief)
}

func TestDispatchSuccess(t *testing.T) {
	ts := New()
	require.NoError(t, ts.Add(echoTool{}))
	result := ts.Dispatch(context.Background(), ToolCall{ID: "1", Name: "echo", Arguments: `{"message":"hi"}`}, nil)
	require.False(t, result.ReturnValue.IsError)
	assert.Equal(t, TextOutput("hi"), result.ReturnValue.Output)
}

// TestDispatchPanicSafety is testable property 6 / scenario S4: a tool
// that panics yields exactly one ToolResult with IsError=true and
// brief="Tool runtime error", mentioning the panic message, and the
// process continues.
func TestDispatchPanicSafety(t *testing.T) {
	ts := New()
	require.NoError(t, ts.Add(panicTool{}))
	result := ts.Dispatch(context.Background(), ToolCall{ID: "1", Name: "panic", Arguments: "{}"}, nil)
	require.True(t, result.ReturnValue.IsError)
	assert.Equal(t, "Tool runtime error", result.ReturnValue.Brief)
	assert.Contains(t, result.ReturnValue.Message, "boom")
}

func TestDispatchAllPreservesCallOrder(t *testing.T) {
	ts := New()
	require.NoError(t, ts.Add(echoTool{}))
	calls := []ToolCall{
		{ID: "1", Name: "echo", Arguments: `{"message":"a"}`},
		{ID: "2", Name: "echo", Arguments: `{"message":"b"}`},
		{ID: "3", Name: "echo", Arguments: `{"message":"c"}`},
	}
	results := ts.DispatchAll(context.Background(), calls, nil)
	require.Len(t, results, 3)
	for i, want := range []string{"1", "2", "3"} {
		assert.Equal(t, want, results[i].ToolCallID)
	}
}

func TestCurrentToolCallPropagation(t *testing.T) {
	ts := New()
	var sawID string
	tool := funcTool{
		name: "probe",
		fn: func(ctx context.Context, _ json.RawMessage) ReturnValue {
			call, ok := CurrentToolCall(ctx)
			if ok {
				sawID = call.ID
			}
			return TextReturn("", "", "")
		},
	}
	require.NoError(t, ts.Add(tool))
	ts.Dispatch(context.Background(), ToolCall{ID: "xyz", Name: "probe", Arguments: "{}"}, nil)
	assert.Equal(t, "xyz", sawID)
}

type funcTool struct {
	name string
	fn   func(context.Context, json.RawMessage) ReturnValue
}

func (f funcTool) Name() string               { return f.name }
func (f funcTool) Description() string        { return "" }
func (f funcTool) Parameters() map[string]any { return nil }
func (f funcTool) Call(ctx context.Context, args json.RawMessage) ReturnValue {
	return f.fn(ctx, args)
}
