// Package dmail implements the SendDMail tool: the model's own handle
// on the D-Mail checkpoint-rewind mechanism. Grounded authoritatively
// on tools/dmail.rs.
package dmail

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kagent-go/kagent/internal/denwarenji"
	"github.com/kagent-go/kagent/internal/toolset"
)

const description = "Send a D-Mail: rewind the conversation to an earlier checkpoint and replay it with a new message appended, as if the original turn had included that guidance from the start. Use this when you realize a past step was a dead end. Only one D-Mail can be pending at a time."

// SendDMail registers a rewind request on the soul's DenwaRenji hook.
// The scheduler takes and applies it once the current turn ends.
type SendDMail struct {
	hook *denwarenji.DenwaRenji
}

func New(hook *denwarenji.DenwaRenji) *SendDMail {
	return &SendDMail{hook: hook}
}

func (t *SendDMail) Name() string { return "SendDMail" }

func (t *SendDMail) Description() string { return description }

func (t *SendDMail) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "The message to send.",
			},
			"checkpoint_id": map[string]any{
				"type":        "integer",
				"description": "The checkpoint to send the message back to.",
				"minimum":     0,
			},
		},
		"required": []any{"message", "checkpoint_id"},
	}
}

type dmailParams struct {
	Message      string `json:"message"`
	CheckpointID int64  `json:"checkpoint_id"`
}

func (t *SendDMail) Call(_ context.Context, args json.RawMessage) toolset.ReturnValue {
	var params dmailParams
	if err := json.Unmarshal(args, &params); err != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("Invalid arguments: %v", err), "Invalid arguments")
	}

	if err := t.hook.SendDMail(denwarenji.DMail{Message: params.Message, CheckpointID: params.CheckpointID}); err != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("Failed to send D-Mail. Error: %v", err), "Failed to send D-Mail")
	}

	return toolset.TextReturn("",
		"If you see this message, the D-Mail was NOT sent successfully. This may be because some other tool that needs approval was rejected.",
		"El Psy Kongroo")
}
