package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kagent-go/kagent/internal/toolset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFileReturnsNumberedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0o644))

	tool := NewReadFile(dir)
	result := tool.Call(context.Background(), []byte(`{"path":"hello.txt"}`))

	require.False(t, result.IsError)
	output := string(result.Output.(toolset.TextOutput))
	assert.Contains(t, output, "one")
	assert.Contains(t, output, "three")
	assert.Equal(t, "3 lines read from file starting from line 1. End of file reached.", result.Message)
}

func TestReadFileMissingFileErrors(t *testing.T) {
	dir := t.TempDir()
	tool := NewReadFile(dir)

	result := tool.Call(context.Background(), []byte(`{"path":"missing.txt"}`))

	require.True(t, result.IsError)
	assert.Equal(t, "File not found", result.Brief)
}

func TestReadFileRelativeEscapeRequiresAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	tool := NewReadFile(dir)

	result := tool.Call(context.Background(), []byte(`{"path":"../outside.txt"}`))

	require.True(t, result.IsError)
	assert.Equal(t, "Invalid path", result.Brief)
}

func TestReadFilePaging(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lines.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\nc\nd\n"), 0o644))

	tool := NewReadFile(dir)
	result := tool.Call(context.Background(), []byte(`{"path":"lines.txt","line_offset":2,"n_lines":2}`))

	require.False(t, result.IsError)
	output := string(result.Output.(toolset.TextOutput))
	assert.Contains(t, output, "b")
	assert.Contains(t, output, "c")
	assert.NotContains(t, output, "a")
	assert.NotContains(t, output, "d")
}
