package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kagent-go/kagent/internal/toolset"
)

const globDescription = "Search for files and directories matching a glob pattern. Patterns starting with '**' are rejected as unsafe. Returns at most 200 matches."

// Glob matches files against a shell glob pattern rooted at a
// directory, rejecting recursive "**"-prefixed patterns. Grounded
// authoritatively on tools/file/glob.rs.
type Glob struct {
	workDir string
}

func NewGlob(workDir string) *Glob { return &Glob{workDir: workDir} }

func (t *Glob) Name() string { return "Glob" }

func (t *Glob) Description() string { return globDescription }

func (t *Glob) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{
				"type":        "string",
				"description": "Glob pattern to match files/directories.",
			},
			"directory": map[string]any{
				"type":        "string",
				"description": "Absolute path to the directory to search in (defaults to working directory).",
			},
			"include_dirs": map[string]any{
				"type":        "boolean",
				"description": "Whether to include directories in results.",
			},
		},
		"required": []any{"pattern"},
	}
}

type globParams struct {
	Pattern     string `json:"pattern"`
	Directory   string `json:"directory"`
	IncludeDirs *bool  `json:"include_dirs"`
}

func (t *Glob) Call(_ context.Context, args json.RawMessage) toolset.ReturnValue {
	var params globParams
	if err := json.Unmarshal(args, &params); err != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("Invalid arguments: %v", err), "Invalid arguments")
	}
	includeDirs := true
	if params.IncludeDirs != nil {
		includeDirs = *params.IncludeDirs
	}

	if strings.HasPrefix(params.Pattern, "**") {
		listing := listDirectory(t.workDir)
		return toolset.ErrorReturn(listing,
			fmt.Sprintf("Pattern `%s` starts with '**' which is not allowed. This would recursively search all directories and may include large directories like `node_modules`. Use more specific patterns instead. For your convenience, a list of all files and directories in the top level of the working directory is provided below.", params.Pattern),
			"Unsafe pattern")
	}

	dir := t.workDir
	if params.Directory != "" {
		dir = params.Directory
	}
	if !filepath.IsAbs(dir) {
		return toolset.ErrorReturn("", fmt.Sprintf("`%s` is not an absolute path. You must provide an absolute path to search.", params.Directory), "Invalid directory")
	}

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		resolved = filepath.Clean(dir)
	}
	if !isWithinDirectory(resolved, t.workDir) {
		return toolset.ErrorReturn("", fmt.Sprintf("`%s` is outside the working directory. You can only search within the working directory.", dir), "Directory outside working directory")
	}

	info, err := os.Stat(dir)
	if err != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("`%s` does not exist.", params.Directory), "Directory not found")
	}
	if !info.IsDir() {
		return toolset.ErrorReturn("", fmt.Sprintf("`%s` is not a directory.", params.Directory), "Invalid directory")
	}

	matches, err := filepath.Glob(filepath.Join(dir, params.Pattern))
	if err != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("Failed to search for pattern %s. Error: %v", params.Pattern, err), "Glob failed")
	}

	var filtered []string
	for _, m := range matches {
		fi, err := os.Stat(m)
		if err != nil {
			continue
		}
		if includeDirs || !fi.IsDir() {
			filtered = append(filtered, m)
		}
	}
	sort.Strings(filtered)

	message := fmt.Sprintf("No matches found for pattern `%s`.", params.Pattern)
	if len(filtered) > 0 {
		message = fmt.Sprintf("Found %d matches for pattern `%s`.", len(filtered), params.Pattern)
	}
	if len(filtered) > maxMatches {
		filtered = filtered[:maxMatches]
		message += fmt.Sprintf(" Only the first %d matches are returned. You may want to use a more specific pattern.", maxMatches)
	}

	lines := make([]string, 0, len(filtered))
	for _, m := range filtered {
		rel, err := filepath.Rel(dir, m)
		if err != nil {
			rel = m
		}
		lines = append(lines, rel)
	}

	return toolset.TextReturn(strings.Join(lines, "\n"), message, "")
}

func listDirectory(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return strings.Join(names, "\n")
}
