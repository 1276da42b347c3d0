// Package todo implements the SetTodoList tool: the model replaces its
// entire todo list in one call, surfaced to the UI as a display block.
// Grounded authoritatively on tools/todo.rs.
package todo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kagent-go/kagent/internal/toolset"
)

const description = "Replace the current todo list with the given items. Call this whenever the plan changes: a step starts, finishes, or a new one is discovered. Keep exactly one item in_progress at a time."

// Status is one todo item's lifecycle state.
type Status string

const (
	Pending    Status = "pending"
	InProgress Status = "in_progress"
	Done       Status = "done"
)

// Item is one todo entry.
type Item struct {
	Title  string `json:"title"`
	Status Status `json:"status"`
}

// SetTodoList has no state beyond the toolset registration: the
// authoritative todo list lives in the conversation transcript, not in
// the tool, matching the original's stateless display-only design.
type SetTodoList struct{}

func New() *SetTodoList { return &SetTodoList{} }

func (t *SetTodoList) Name() string { return "SetTodoList" }

func (t *SetTodoList) Description() string { return description }

func (t *SetTodoList) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"todos": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title":  map[string]any{"type": "string", "minLength": 1, "description": "The title of the todo"},
						"status": map[string]any{"type": "string", "enum": []any{"pending", "in_progress", "done"}, "description": "The status of the todo"},
					},
					"required": []any{"title", "status"},
				},
				"description": "The updated todo list",
			},
		},
		"required": []any{"todos"},
	}
}

type todoParams struct {
	Todos []Item `json:"todos"`
}

func (t *SetTodoList) Call(_ context.Context, args json.RawMessage) toolset.ReturnValue {
	var params todoParams
	if err := json.Unmarshal(args, &params); err != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("Invalid arguments: %v", err), "Invalid arguments")
	}

	rendered, _ := json.Marshal(params.Todos)
	return toolset.ReturnValue{
		Output:  toolset.TextOutput(""),
		Message: "Todo list updated",
		Display: []toolset.DisplayBlock{{Kind: "todo", Text: string(rendered)}},
	}
}
