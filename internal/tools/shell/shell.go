// Package shell implements the Shell tool: run a command in the
// system shell behind an approval gate. Grounded authoritatively on
// tools/shell.rs for the approval-then-exec flow and timeout/exit-code
// handling, with the process-execution idiom (exec.CommandContext,
// CombinedOutput, *exec.ExitError for the exit code) from
// kadirpekel-hector/pkg/tools/command.go.
package shell

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/kagent-go/kagent/internal/approval"
	"github.com/kagent-go/kagent/internal/toolset"
)

const defaultTimeoutSeconds = 60

const description = "Execute a command in the system shell and return its combined stdout/stderr. Runs behind an approval prompt: the user sees the exact command before it executes."

// Shell runs one command per call via `sh -c`, gated on approval.
type Shell struct {
	approval *approval.Approval
}

// New builds a Shell tool against the runtime's approval coordinator.
func New(appr *approval.Approval) *Shell {
	return &Shell{approval: appr}
}

func (t *Shell) Name() string { return "Shell" }

func (t *Shell) Description() string { return description }

func (t *Shell) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The shell command to execute.",
			},
			"timeout": map[string]any{
				"type":        "integer",
				"description": "Timeout in seconds. If the command runs longer than this it is killed.",
				"minimum":     1,
				"maximum":     300,
			},
		},
		"required": []any{"command"},
	}
}

type shellParams struct {
	Command string `json:"command"`
	Timeout int64  `json:"timeout"`
}

func (t *Shell) Call(ctx context.Context, args json.RawMessage) toolset.ReturnValue {
	var params shellParams
	if err := json.Unmarshal(args, &params); err != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("Invalid arguments: %v", err), "Invalid arguments")
	}
	if params.Command == "" {
		return toolset.ErrorReturn("", "Command cannot be empty.", "Empty command")
	}
	if params.Timeout <= 0 {
		params.Timeout = defaultTimeoutSeconds
	}

	call, _ := toolset.CurrentToolCall(ctx)
	soul, _ := toolset.CurrentWire(ctx)

	approved, err := t.approval.Request(ctx, soul, call.ID, t.Name(), "run command",
		fmt.Sprintf("Run command `%s`", params.Command),
		[]string{params.Command})
	if err != nil || !approved {
		return toolset.RejectedReturn()
	}

	execCtx, cancel := context.WithTimeout(ctx, time.Duration(params.Timeout)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-c", params.Command)
	output, runErr := cmd.CombinedOutput()

	if execCtx.Err() != nil {
		return toolset.ErrorReturn(string(output),
			fmt.Sprintf("Command killed by timeout (%ds)", params.Timeout),
			fmt.Sprintf("Killed by timeout (%ds)", params.Timeout))
	}

	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			return toolset.ErrorReturn(string(output),
				fmt.Sprintf("Command failed with exit code: %d.", exitErr.ExitCode()),
				fmt.Sprintf("Failed with exit code: %d", exitErr.ExitCode()))
		}
		return toolset.ErrorReturn(string(output), fmt.Sprintf("Tool runtime error: %v", runErr), "Tool runtime error")
	}

	return toolset.TextReturn(string(output), "Command executed successfully.", "")
}
