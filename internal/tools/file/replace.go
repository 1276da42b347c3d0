package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/kagent-go/kagent/internal/approval"
	"github.com/kagent-go/kagent/internal/toolset"
)

const replaceDescription = "Edit a file by replacing exact string matches. Supports a single edit or a list of edits applied in order. Shows the user a diff and waits for approval before writing. Absolute paths are required when editing files outside the working directory."

// StrReplaceFile applies one or more exact string replacements to an
// existing file behind an approval gate. Grounded authoritatively on
// tools/file/replace.rs.
type StrReplaceFile struct {
	workDir  string
	approval *approval.Approval
}

func NewStrReplaceFile(workDir string, appr *approval.Approval) *StrReplaceFile {
	return &StrReplaceFile{workDir: workDir, approval: appr}
}

func (t *StrReplaceFile) Name() string { return "StrReplaceFile" }

func (t *StrReplaceFile) Description() string { return replaceDescription }

func (t *StrReplaceFile) Parameters() map[string]any {
	editSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"old":         map[string]any{"type": "string", "description": "The old string to replace. Can be multi-line."},
			"new":         map[string]any{"type": "string", "description": "The new string to replace with. Can be multi-line."},
			"replace_all": map[string]any{"type": "boolean", "description": "Whether to replace all occurrences."},
		},
		"required": []any{"old", "new"},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "The path to the file to edit. Absolute paths are required when editing files outside the working directory.",
			},
			"edit": map[string]any{
				"anyOf":       []any{editSchema, map[string]any{"type": "array", "items": editSchema}},
				"description": "The edit(s) to apply to the file. You can provide a single edit or a list of edits here.",
			},
		},
		"required": []any{"path", "edit"},
	}
}

// Edit is a single exact-string replacement.
type Edit struct {
	Old        string `json:"old"`
	New        string `json:"new"`
	ReplaceAll bool   `json:"replace_all"`
}

type replaceParams struct {
	Path string `json:"path"`
	Edit edits  `json:"edit"`
}

// edits unmarshals either a single Edit object or a list of them,
// mirroring replace.rs's deserialize_edit_list.
type edits []Edit

func (e *edits) UnmarshalJSON(data []byte) error {
	var list []Edit
	if err := json.Unmarshal(data, &list); err == nil {
		*e = list
		return nil
	}
	var single Edit
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*e = []Edit{single}
	return nil
}

func (t *StrReplaceFile) Call(ctx context.Context, args json.RawMessage) toolset.ReturnValue {
	var params replaceParams
	if err := json.Unmarshal(args, &params); err != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("Invalid arguments: %v", err), "Invalid arguments")
	}
	if params.Path == "" {
		return toolset.ErrorReturn("", "File path cannot be empty.", "Empty file path")
	}

	if err := validateAbsolutePath(params.Path, t.workDir, "edit"); err != nil {
		return toolset.ErrorReturn("", err.Error(), "Invalid path")
	}
	path := resolveToolPath(t.workDir, params.Path)

	info, err := os.Stat(path)
	if err != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("`%s` does not exist.", params.Path), "File not found")
	}
	if info.IsDir() {
		return toolset.ErrorReturn("", fmt.Sprintf("`%s` is not a file.", params.Path), "Invalid path")
	}

	originalBytes, err := os.ReadFile(path)
	if err != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("Failed to edit. Error: %v", err), "Failed to edit file")
	}
	original := string(originalBytes)

	content := original
	for _, edit := range params.Edit {
		if edit.ReplaceAll {
			content = strings.ReplaceAll(content, edit.Old, edit.New)
		} else {
			content = strings.Replace(content, edit.Old, edit.New, 1)
		}
	}

	if content == original {
		return toolset.ErrorReturn("", "No replacements were made. The old string was not found in the file.", "No replacements made")
	}

	display := buildDiffDisplay(path, original, content)
	action := editAction(path, t.workDir)

	call, _ := toolset.CurrentToolCall(ctx)
	soul, _ := toolset.CurrentWire(ctx)

	approved, err := t.approval.Request(ctx, soul, call.ID, t.Name(), action,
		fmt.Sprintf("Edit file `%s`", path), displayText(display))
	if err != nil || !approved {
		return toolset.RejectedReturn()
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("Failed to edit %s. Error: %v", params.Path, err), "Failed to edit file")
	}

	return toolset.ReturnValue{
		Output:  toolset.TextOutput(""),
		Message: "File successfully edited.",
		Display: display,
	}
}
