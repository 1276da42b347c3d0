// Package task implements the Task tool: delegate a subtask to a named
// subagent and wait for its reply. Grounded on
// pkg/agent/agent_call_tool.go's delegation pattern (AgentCallTool ->
// AgentRegistry.GetAgent -> ExecuteTask -> extract output text), adapted
// from hector's A2A task-request/response shape to this spec's
// run-a-scheduler-to-completion model described in SPEC_FULL.md §4.8.
package task

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/kagent-go/kagent/internal/agent"
	kctx "github.com/kagent-go/kagent/internal/context"
	"github.com/kagent-go/kagent/internal/llm"
	"github.com/kagent-go/kagent/internal/scheduler"
	"github.com/kagent-go/kagent/internal/toolset"
)

const taskDescription = "Delegate a task to a named subagent and wait for its final reply. Use this to hand off a well-scoped subtask to a specialist created via CreateSubagent or declared in the agent spec."

// Task resolves a subagent by name from a shared labor market, runs it
// to completion against a fresh context, and returns its last assistant
// message.
type Task struct {
	market     *agent.LaborMarket
	client     llm.Client
	contextDir string
	limits     scheduler.Limits
}

// New builds a Task tool. contextDir is where each invocation's
// throwaway subagent context journal is written; client is the LLM
// client shared with the parent scheduler.
func New(market *agent.LaborMarket, client llm.Client, contextDir string, limits scheduler.Limits) *Task {
	return &Task{market: market, client: client, contextDir: contextDir, limits: limits}
}

func (t *Task) Name() string { return "Task" }

func (t *Task) Description() string { return taskDescription }

func (t *Task) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent": map[string]any{
				"type":        "string",
				"description": "Name of the subagent to delegate to, as registered via CreateSubagent or declared in the agent spec.",
			},
			"task": map[string]any{
				"type":        "string",
				"description": "The task or prompt to hand off to the subagent.",
			},
		},
		"required": []any{"agent", "task"},
	}
}

type taskParams struct {
	Agent string `json:"agent"`
	Task  string `json:"task"`
}

func (t *Task) Call(ctx context.Context, args json.RawMessage) toolset.ReturnValue {
	var params taskParams
	if err := json.Unmarshal(args, &params); err != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("Invalid arguments: %v", err), "Invalid arguments")
	}

	sub, ok := t.market.Get(params.Agent)
	if !ok {
		return toolset.ErrorReturn(
			"",
			fmt.Sprintf("Agent '%s' not found.", params.Agent),
			fmt.Sprintf("Agent '%s' not found", params.Agent),
		)
	}

	ctxPath := filepath.Join(t.contextDir, fmt.Sprintf("%s-%s.jsonl", sub.Name, uuid.NewString()))
	subCtx := kctx.Open(ctxPath)

	sched := scheduler.New(t.client, subCtx, sub.Toolset, sub.Runtime.Approval(), sub.Runtime.DMail(), nil, sub.SystemPrompt, t.limits)
	if err := sched.Run(ctx, params.Task); err != nil {
		return toolset.ErrorReturn(
			"",
			fmt.Sprintf("Agent '%s' execution failed: %v", params.Agent, err),
			"Subagent execution failed",
		)
	}

	messages := subCtx.Messages()
	var reply string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleAssistant {
			reply = messages[i].Text()
			break
		}
	}

	output := fmt.Sprintf("[Delegated to: %s]\n\n%s", params.Agent, reply)
	return toolset.TextReturn(output, fmt.Sprintf("Subagent '%s' finished.", params.Agent), "")
}
