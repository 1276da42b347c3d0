package toolset

import (
	"context"

	"github.com/kagent-go/kagent/internal/wire"
)

// Go has no goroutine-local storage; the current wire and current tool
// call are threaded through context.Context instead, set exactly once
// where a tool's goroutine is spawned (in Dispatch) and never elsewhere.
// These accessors are the only sanctioned way to read them back out, per
// the task-local design note in SPEC_FULL.md §9.

type currentWireKey struct{}
type currentToolCallKey struct{}

func withCurrentWire(ctx context.Context, soul *wire.SoulSide) context.Context {
	return context.WithValue(ctx, currentWireKey{}, soul)
}

func withCurrentToolCall(ctx context.Context, call ToolCall) context.Context {
	return context.WithValue(ctx, currentToolCallKey{}, call)
}

// CurrentWire returns the soul-side wire handle active for the calling
// tool invocation, if any.
func CurrentWire(ctx context.Context) (*wire.SoulSide, bool) {
	soul, ok := ctx.Value(currentWireKey{}).(*wire.SoulSide)
	return soul, ok
}

// CurrentToolCall returns the ToolCall active for the calling tool
// invocation, if any.
func CurrentToolCall(ctx context.Context) (ToolCall, bool) {
	call, ok := ctx.Value(currentToolCallKey{}).(ToolCall)
	return call, ok
}
