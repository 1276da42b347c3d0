package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kagent-go/kagent/internal/llm"
	"github.com/kagent-go/kagent/internal/wire"
)

// RunCmd starts an interactive chat session against stdin/stdout, the
// CLI's default command. Grounded on
// _examples/kadirpekel-hector/cmd/hector/chat_direct.go's read-eval-print
// loop shape, adapted to this module's own turn/event model: assistant
// text deltas arrive as StatusUpdate events and are printed as
// "[status]" lines while the turn runs; the complete reply is then read
// back from the context store and printed once Soul.Run returns.
type RunCmd struct{}

func (r *RunCmd) Run(cli *CLI) error {
	env, err := build(cli)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("kagent session %s (%s) - /quit to exit, /clear to reset context\n", env.session.ID, env.session.WorkspacePath)

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		switch input {
		case "/quit", "/exit":
			return nil
		case "/clear":
			if err := env.ctxStore.Clear(); err != nil {
				fmt.Fprintln(os.Stderr, "clear failed:", err)
			}
			continue
		}

		before := env.ctxStore.Len()
		if err := runTurn(ctx, env, input); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		printNewAssistantMessages(env, before)
	}
}

// runTurn drains the turn's wire events to stdout while Soul.Run
// executes, so tool calls and approvals are visible as they happen even
// though the final reply is only available afterward.
func runTurn(ctx context.Context, env *environment, input string) error {
	return env.soul.Run(ctx, input, func(msg wire.Message) {
		handleEvent(env, msg)
	})
}

func handleEvent(env *environment, msg wire.Message) {
	switch msg.Type {
	case wire.TypeToolCallRequest:
		var p wire.ToolCallRequestPayload
		if err := json.Unmarshal(msg.Payload, &p); err == nil {
			fmt.Printf("[tool] %s(%s)\n", p.Name, p.Arguments)
		}
	case wire.TypeStatusUpdate:
		var p wire.StatusUpdatePayload
		if err := json.Unmarshal(msg.Payload, &p); err == nil {
			fmt.Printf("[status] %s\n", p.Status)
		}
	case wire.TypeStepInterrupted:
		var p wire.StepInterruptedPayload
		if err := json.Unmarshal(msg.Payload, &p); err == nil {
			fmt.Printf("[interrupted] %s\n", p.Reason)
		}
	case wire.TypeCompactionBegin:
		fmt.Println("[compacting context...]")
	case wire.TypeApprovalRequest:
		var p wire.ApprovalRequestPayload
		if err := json.Unmarshal(msg.Payload, &p); err == nil {
			promptApproval(env, p)
		}
	}
}

// promptApproval asks the user on stdin and resolves the pending
// request; it runs on the single event-drain goroutine, so delivery of
// further events waits until the user has answered.
func promptApproval(env *environment, p wire.ApprovalRequestPayload) {
	fmt.Printf("[approval] %s wants to %s: %s\n", p.Sender, p.Action, p.Description)
	for _, line := range p.Display {
		fmt.Println("  " + line)
	}
	fmt.Print("approve? [y/N/a=always for this action] ")

	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		_ = env.approval.ResolveRequest(p.ID, wire.Approve)
	case "a", "always":
		_ = env.approval.ResolveRequest(p.ID, wire.ApproveForSession)
	default:
		_ = env.approval.ResolveRequest(p.ID, wire.Reject)
	}
}

func printNewAssistantMessages(env *environment, before int) {
	msgs := env.ctxStore.Messages()
	for _, m := range msgs[before:] {
		if m.Role != llm.RoleAssistant {
			continue
		}
		if text := m.Text(); text != "" {
			fmt.Println(text)
		}
	}
}
