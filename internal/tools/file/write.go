package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kagent-go/kagent/internal/approval"
	"github.com/kagent-go/kagent/internal/toolset"
)

const writeDescription = "Write content to a file, either overwriting it or appending to it. Shows the user a diff and waits for approval before writing. Absolute paths are required when writing files outside the working directory."

// WriteMode selects whether content replaces or is appended to a file.
type WriteMode string

const (
	Overwrite WriteMode = "overwrite"
	Append    WriteMode = "append"
)

// WriteFile writes or appends file content behind an approval gate that
// shows the diff it's about to apply. Grounded authoritatively on
// tools/file/write.rs.
type WriteFile struct {
	workDir  string
	approval *approval.Approval
}

func NewWriteFile(workDir string, appr *approval.Approval) *WriteFile {
	return &WriteFile{workDir: workDir, approval: appr}
}

func (t *WriteFile) Name() string { return "WriteFile" }

func (t *WriteFile) Description() string { return writeDescription }

func (t *WriteFile) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "The path to the file to write. Absolute paths are required when writing files outside the working directory.",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "The content to write to the file",
			},
			"mode": map[string]any{
				"type":        "string",
				"enum":        []any{"overwrite", "append"},
				"description": "The mode to use to write to the file. Two modes are supported: `overwrite` for overwriting the whole file and `append` for appending to the end of an existing file.",
			},
		},
		"required": []any{"path", "content"},
	}
}

type writeParams struct {
	Path    string    `json:"path"`
	Content string    `json:"content"`
	Mode    WriteMode `json:"mode"`
}

func (t *WriteFile) Call(ctx context.Context, args json.RawMessage) toolset.ReturnValue {
	var params writeParams
	if err := json.Unmarshal(args, &params); err != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("Invalid arguments: %v", err), "Invalid arguments")
	}
	if params.Path == "" {
		return toolset.ErrorReturn("", "File path cannot be empty.", "Empty file path")
	}
	if params.Mode == "" {
		params.Mode = Overwrite
	}

	if err := validateAbsolutePath(params.Path, t.workDir, "write"); err != nil {
		return toolset.ErrorReturn("", err.Error(), "Invalid path")
	}
	path := resolveToolPath(t.workDir, params.Path)

	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("`%s` parent directory does not exist.", params.Path), "Parent directory not found")
	}

	appendMode := params.Mode == Append

	var oldText string
	if existing, err := os.ReadFile(path); err == nil {
		oldText = string(existing)
	}

	newText := params.Content
	if appendMode {
		newText = oldText + params.Content
	}

	display := buildDiffDisplay(path, oldText, newText)
	action := editAction(path, t.workDir)

	call, _ := toolset.CurrentToolCall(ctx)
	soul, _ := toolset.CurrentWire(ctx)

	approved, err := t.approval.Request(ctx, soul, call.ID, t.Name(), action,
		fmt.Sprintf("Write file `%s`", path), displayText(display))
	if err != nil || !approved {
		return toolset.RejectedReturn()
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if appendMode {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("Failed to write to %s. Error: %v", params.Path, err), "Failed to write file")
	}
	_, writeErr := f.WriteString(params.Content)
	closeErr := f.Close()
	if writeErr != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("Failed to write to %s. Error: %v", params.Path, writeErr), "Failed to write file")
	}
	if closeErr != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("Failed to write to %s. Error: %v", params.Path, closeErr), "Failed to write file")
	}

	size := int64(len(newText))
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	verb := "overwritten"
	if appendMode {
		verb = "appended to"
	}

	return toolset.ReturnValue{
		Output:  toolset.TextOutput(""),
		Message: fmt.Sprintf("File successfully %s. Current size: %d bytes.", verb, size),
		Display: display,
	}
}

func displayText(blocks []toolset.DisplayBlock) []string {
	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, b.Text)
	}
	return out
}
