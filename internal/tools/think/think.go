// Package think implements the Think tool: a scratchpad call with no
// side effect beyond being logged to the wire/context, used by the
// model to reason out loud between tool calls. Grounded authoritatively
// on tools/think.rs.
package think

import (
	"context"
	"encoding/json"

	"github.com/kagent-go/kagent/internal/toolset"
)

const description = "Use this tool to think through a problem, plan next steps, or reason about a tool result, without taking any action. The content is not shown to the user but is recorded in the conversation."

// Think has no state: calling it is purely a structured way for the
// model to externalize a thought into the transcript.
type Think struct{}

func New() *Think { return &Think{} }

func (t *Think) Name() string { return "Think" }

func (t *Think) Description() string { return description }

func (t *Think) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"thought": map[string]any{
				"type":        "string",
				"description": "A thought to think about.",
			},
		},
		"required": []any{"thought"},
	}
}

func (t *Think) Call(_ context.Context, _ json.RawMessage) toolset.ReturnValue {
	return toolset.TextReturn("", "Thought logged", "")
}
