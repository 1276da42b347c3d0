// Package multiagent implements the CreateSubagent tool, grounded
// authoritatively on tools/multiagent/create.rs.
package multiagent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kagent-go/kagent/internal/agent"
	"github.com/kagent-go/kagent/internal/toolset"
)

const createSubagentDescription = "Create a new subagent configuration at runtime, addressable afterward via the Task tool. Use this to spin up a specialist (e.g. a code reviewer, a summarizer) for the rest of this session."

// CreateSubagent registers a new dynamic subagent in a shared toolset's
// owning runtime's labor market.
type CreateSubagent struct {
	toolset *toolset.Toolset
	runtime agent.RuntimeHandle
}

// New builds a CreateSubagent tool. toolset is shared (not copied) with
// every dynamic subagent it creates, matching the original's
// Arc::clone(&self.toolset).
func New(ts *toolset.Toolset, runtime agent.RuntimeHandle) *CreateSubagent {
	return &CreateSubagent{toolset: ts, runtime: runtime}
}

func (t *CreateSubagent) Name() string { return "CreateSubagent" }

func (t *CreateSubagent) Description() string { return createSubagentDescription }

func (t *CreateSubagent) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{
				"type":        "string",
				"description": "Unique name for this agent configuration (e.g., 'summarizer', 'code_reviewer'). This name will be used to reference the agent in the Task tool.",
			},
			"system_prompt": map[string]any{
				"type":        "string",
				"description": "System prompt defining the agent's role, capabilities, and boundaries.",
			},
		},
		"required": []any{"name", "system_prompt"},
	}
}

type createSubagentParams struct {
	Name         string `json:"name"`
	SystemPrompt string `json:"system_prompt"`
}

func (t *CreateSubagent) Call(_ context.Context, args json.RawMessage) toolset.ReturnValue {
	var params createSubagentParams
	if err := json.Unmarshal(args, &params); err != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("Invalid arguments: %v", err), "Invalid arguments")
	}

	market := t.runtime.Labor()
	if _, exists := market.Get(params.Name); exists {
		return toolset.ErrorReturn(
			"",
			fmt.Sprintf("Subagent with name '%s' already exists.", params.Name),
			"Subagent already exists",
		)
	}

	subagent := &agent.Agent{
		Name:         params.Name,
		SystemPrompt: params.SystemPrompt,
		Toolset:      t.toolset,
		Runtime:      runtimeFor(t.runtime),
	}
	if err := market.AddDynamicSubagent(subagent); err != nil {
		return toolset.ErrorReturn("", err.Error(), "Subagent already exists")
	}

	output := "Available subagents: " + strings.Join(market.SortedNames(), ", ")
	return toolset.TextReturn(output, fmt.Sprintf("Subagent '%s' created successfully.", params.Name), "")
}

// runtimeFor mirrors copy_for_dynamic_subagent: a dynamically created
// subagent gets its own runtime copy (independent approval queue, shared
// labor market and D-Mail hook) when the handle supports it, otherwise
// it inherits the creator's handle directly.
func runtimeFor(h agent.RuntimeHandle) agent.RuntimeHandle {
	if copier, ok := h.(interface {
		CopyForDynamicSubagent() agent.RuntimeHandle
	}); ok {
		return copier.CopyForDynamicSubagent()
	}
	return h
}
