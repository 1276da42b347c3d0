package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kagent-go/kagent/internal/toolset"
)

const readDescription = "Read a file from the filesystem, with line numbers prefixed. Returns up to 1000 lines or 256KB, whichever comes first. Use line_offset/n_lines to page through a large file. Absolute paths are required when reading files outside the working directory."

// ReadFile reads a text file, numbering and optionally paging its
// lines. Grounded authoritatively on tools/file/read.rs.
type ReadFile struct {
	workDir string
}

func NewReadFile(workDir string) *ReadFile { return &ReadFile{workDir: workDir} }

func (t *ReadFile) Name() string { return "ReadFile" }

func (t *ReadFile) Description() string { return readDescription }

func (t *ReadFile) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "The path to the file to read. Absolute paths are required when reading files outside the working directory.",
			},
			"line_offset": map[string]any{
				"type":        "integer",
				"description": "The line number to start reading from. By default read from the beginning of the file.",
				"minimum":     1,
			},
			"n_lines": map[string]any{
				"type":        "integer",
				"description": "The number of lines to read. By default read up to 1000 lines, which is the max allowed value.",
				"minimum":     1,
			},
		},
		"required": []any{"path"},
	}
}

type readParams struct {
	Path       string `json:"path"`
	LineOffset int64  `json:"line_offset"`
	NLines     int64  `json:"n_lines"`
}

func (t *ReadFile) Call(_ context.Context, args json.RawMessage) toolset.ReturnValue {
	var params readParams
	if err := json.Unmarshal(args, &params); err != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("Invalid arguments: %v", err), "Invalid arguments")
	}
	if params.LineOffset == 0 {
		params.LineOffset = 1
	}
	if params.NLines == 0 {
		params.NLines = maxLines
	}
	if params.LineOffset < 1 {
		return toolset.ErrorReturn("", "line_offset must be >= 1", "Invalid arguments")
	}
	if params.NLines < 1 {
		return toolset.ErrorReturn("", "n_lines must be >= 1", "Invalid arguments")
	}
	if params.Path == "" {
		return toolset.ErrorReturn("", "File path cannot be empty.", "Empty file path")
	}

	if err := validateAbsolutePath(params.Path, t.workDir, "read"); err != nil {
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

	f, err := os.Open(path)
	if err != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("Failed to read %s. Error: %v", params.Path, err), "Failed to read file")
	}
	defer f.Close()

	header := make([]byte, mediaSniffBytes)
	n, _ := f.Read(header)
	if looksBinary(header[:n]) {
		return toolset.ErrorReturn("", fmt.Sprintf("`%s` seems not readable as text. Use shell commands or another tool for binary files.", params.Path), "Unsupported file type")
	}
	if _, err := f.Seek(0, 0); err != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("Failed to read %s. Error: %v", params.Path, err), "Failed to read file")
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	var truncatedLines []int64
	var nBytes int
	var currentLine int64
	maxLinesReached := false
	maxBytesReached := false

	for scanner.Scan() {
		line := scanner.Text()
		currentLine++
		if currentLine < params.LineOffset {
			continue
		}
		truncated := truncateLine(line, maxLineLength, "...")
		if truncated != line {
			truncatedLines = append(truncatedLines, currentLine)
		}
		lines = append(lines, truncated)
		nBytes += len(truncated)
		if int64(len(lines)) >= params.NLines {
			break
		}
		if len(lines) >= maxLines {
			maxLinesReached = true
			break
		}
		if nBytes >= maxBytes {
			maxBytesReached = true
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("Failed to read %s. Error: %v", params.Path, err), "Failed to read file")
	}

	var numbered string
	for idx, line := range lines {
		numbered += fmt.Sprintf("%6d\t%s\n", params.LineOffset+int64(idx), line)
	}

	message := "No lines read from file."
	if len(lines) > 0 {
		message = fmt.Sprintf("%d lines read from file starting from line %d.", len(lines), params.LineOffset)
	}
	switch {
	case maxLinesReached:
		message += fmt.Sprintf(" Max %d lines reached.", maxLines)
	case maxBytesReached:
		message += fmt.Sprintf(" Max %d bytes reached.", maxBytes)
	case int64(len(lines)) < params.NLines:
		message += " End of file reached."
	}
	if len(truncatedLines) > 0 {
		message += fmt.Sprintf(" Lines %v were truncated.", truncatedLines)
	}

	return toolset.TextReturn(numbered, message, "")
}
