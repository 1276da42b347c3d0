// Package toolset implements the type-erased tool table: argument
// validation, concurrent execution, result aggregation, and a
// panic-safe invocation boundary. Grounded on
// kadirpekel-hector/pkg/tools/interfaces.go (Tool/ToolCall/ToolResult
// shape) and kadirpekel-hector/pkg/registry/registry.go (registry
// pattern), with argument validation against JSON Schema filled in from
// santhosh-tekuri/jsonschema/v6 per SPEC_FULL.md §4.4/§11.
package toolset

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kagent-go/kagent/internal/llm"
	"github.com/kagent-go/kagent/internal/wire"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/sync/errgroup"
)

// Output is the Text|Parts variant of a ToolReturnValue's output.
type Output interface{ isOutput() }

// TextOutput is plain text output.
type TextOutput string

func (TextOutput) isOutput() {}

// PartsOutput is structured multi-part output.
type PartsOutput []llm.Part

func (PartsOutput) isOutput() {}

// DisplayBlock is one rich-display fragment accompanying a tool result.
type DisplayBlock struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// ReturnValue is the result of calling a Tool.
type ReturnValue struct {
	IsError bool
	Output  Output
	Message string
	Brief   string
	Display []DisplayBlock
	Extras  map[string]any
}

// TextReturn builds a successful text ReturnValue.
func TextReturn(output, message, brief string) ReturnValue {
	return ReturnValue{Output: TextOutput(output), Message: message, Brief: brief}
}

// ErrorReturn builds a failed ReturnValue.
func ErrorReturn(output, message, brief string) ReturnValue {
	return ReturnValue{IsError: true, Output: TextOutput(output), Message: message, Brief: brief}
}

// RejectedReturn builds the ReturnValue a side-effecting tool reports
// when its approval request is denied. Shared across every tool that
// gates on approval.Approval.Request, so the scheduler and any UI can
// recognize a rejection by its fixed brief rather than by message text.
func RejectedReturn() ReturnValue {
	return ReturnValue{
		IsError: true,
		Output:  TextOutput(""),
		Message: "The tool call is rejected by the user. Please follow the new instructions from the user.",
		Brief:   "Rejected by user",
	}
}

// Tool is the uniform contract every tool obeys.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any // JSON Schema
	Call(ctx context.Context, args json.RawMessage) ReturnValue
}

// ToolCall is one function call requested by the assistant, as surfaced
// to the dispatcher.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON
}

// ToolResult pairs a ToolCall with its ReturnValue.
type ToolResult struct {
	ToolCallID  string
	ReturnValue ReturnValue
}

// Toolset is a mutable map from tool name to Tool, safe for concurrent
// reads; mutation (Add/Remove/Filter) is only safe between steps per the
// concurrency model in SPEC_FULL.md §5.
type Toolset struct {
	mu        sync.RWMutex
	tools     map[string]Tool
	compiled  map[string]*jsonschema.Schema
}

// New creates an empty Toolset.
func New() *Toolset {
	return &Toolset{tools: make(map[string]Tool), compiled: make(map[string]*jsonschema.Schema)}
}

// Add registers a tool, compiling its JSON Schema eagerly so validation
// failures surface at load time rather than at first call.
func (t *Toolset) Add(tool Tool) error {
	compiled, err := compileSchema(tool.Name(), tool.Parameters())
	if err != nil {
		return fmt.Errorf("toolset: add %q: %w", tool.Name(), err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tools[tool.Name()] = tool
	t.compiled[tool.Name()] = compiled
	return nil
}

// Remove deletes a tool by name. No-op if absent.
func (t *Toolset) Remove(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tools, name)
	delete(t.compiled, name)
}

// Filter removes every tool whose name is in exclude.
func (t *Toolset) Filter(exclude []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, name := range exclude {
		delete(t.tools, name)
		delete(t.compiled, name)
	}
}

// List returns the current tool definitions for the provider's
// function-calling surface.
func (t *Toolset) List() []llm.ToolDefinition {
	t.mu.RLock()
	defer t.mu.RUnlock()
	defs := make([]llm.ToolDefinition, 0, len(t.tools))
	for _, tool := range t.tools {
		defs = append(defs, llm.ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		})
	}
	return defs
}

// Get returns a tool by name.
func (t *Toolset) Get(name string) (Tool, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tool, ok := t.tools[name]
	return tool, ok
}

func compileSchema(name string, schema map[string]any) (*jsonschema.Schema, error) {
	if len(schema) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var unmarshalled any
	if err := json.Unmarshal(raw, &unmarshalled); err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	resourceName := "tool://" + name
	if err := c.AddResource(resourceName, unmarshalled); err != nil {
		return nil, err
	}
	return c.Compile(resourceName)
}

// Dispatch handles one ToolCall end to end: lookup, argument parse,
// argument validate, panic-safe invoke. It never panics or returns a Go
// error; every failure is converted to a ReturnValue with IsError=true
// per the uniform tool contract.
func (t *Toolset) Dispatch(ctx context.Context, call ToolCall, soul *wire.SoulSide) ToolResult {
	tool, ok := t.Get(call.Name)
	if !ok {
		return ToolResult{
			ToolCallID:  call.ID,
			ReturnValue: ErrorReturn("", fmt.Sprintf("Tool `%s` not found", call.Name), "Tool not found"),
		}
	}

	var args json.RawMessage
	if call.Arguments == "" {
		args = json.RawMessage("{}")
	} else {
		args = json.RawMessage(call.Arguments)
	}
	var probe any
	if err := json.Unmarshal(args, &probe); err != nil {
		return ToolResult{
			ToolCallID:  call.ID,
			ReturnValue: ErrorReturn("", fmt.Sprintf("Invalid arguments: %v", err), "Invalid arguments"),
		}
	}

	t.mu.RLock()
	schema := t.compiled[call.Name]
	t.mu.RUnlock()
	if schema != nil {
		if err := schema.Validate(probe); err != nil {
			return ToolResult{
				ToolCallID:  call.ID,
				ReturnValue: ErrorReturn("", fmt.Sprintf("Invalid arguments: %v", err), "Invalid arguments"),
			}
		}
	}

	invokeCtx := withCurrentToolCall(ctx, call)
	if soul != nil {
		invokeCtx = withCurrentWire(invokeCtx, soul)
	}

	return ToolResult{ToolCallID: call.ID, ReturnValue: invokeSafely(invokeCtx, tool, args)}
}

// invokeSafely runs tool.Call on the calling goroutine but recovers from
// any panic, converting it into a "Tool runtime error" ReturnValue. Only
// tool invocations are wrapped this way; the scheduler itself is never
// wrapped, so a scheduler-level panic still crashes the process.
func invokeSafely(ctx context.Context, tool Tool, args json.RawMessage) (rv ReturnValue) {
	defer func() {
		if r := recover(); r != nil {
			rv = ErrorReturn("", fmt.Sprintf("Tool runtime error: %v", r), "Tool runtime error")
		}
	}()
	return tool.Call(ctx, args)
}

// DispatchAll runs every call concurrently in an errgroup, with no limit
// on parallelism, and gathers results in ToolCall order, independent of
// completion order. Cancelling ctx reaches every in-flight call.
func (t *Toolset) DispatchAll(ctx context.Context, calls []ToolCall, soul *wire.SoulSide) []ToolResult {
	results := make([]ToolResult, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = t.Dispatch(gctx, call, soul)
			return nil
		})
	}
	_ = g.Wait() // Dispatch never returns a Go error; tool failures live in ReturnValue.
	return results
}
