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

func TestGlobMatchesFilesInWorkDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.go"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.txt"), []byte(""), 0o644))

	tool := NewGlob(dir)
	result := tool.Call(context.Background(), []byte(`{"pattern":"*.go"}`))

	require.False(t, result.IsError)
	output := string(result.Output.(toolset.TextOutput))
	assert.Contains(t, output, "a.go")
	assert.Contains(t, output, "b.go")
	assert.NotContains(t, output, "c.txt")
}

func TestGlobRejectsDoubleStarPrefix(t *testing.T) {
	dir := t.TempDir()
	tool := NewGlob(dir)

	result := tool.Call(context.Background(), []byte(`{"pattern":"**/*.go"}`))

	require.True(t, result.IsError)
	assert.Equal(t, "Unsafe pattern", result.Brief)
}

func TestGlobDirectoryMustBeAbsolute(t *testing.T) {
	dir := t.TempDir()
	tool := NewGlob(dir)

	result := tool.Call(context.Background(), []byte(`{"pattern":"*.go","directory":"relative/path"}`))

	require.True(t, result.IsError)
	assert.Equal(t, "Invalid directory", result.Brief)
}

func TestGlobDirectoryOutsideWorkDirRejected(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	tool := NewGlob(dir)

	result := tool.Call(context.Background(), []byte(`{"pattern":"*.go","directory":"`+outside+`"}`))

	require.True(t, result.IsError)
	assert.Equal(t, "Directory outside working directory", result.Brief)
}

func TestGlobNoMatches(t *testing.T) {
	dir := t.TempDir()
	tool := NewGlob(dir)

	result := tool.Call(context.Background(), []byte(`{"pattern":"*.go"}`))

	require.False(t, result.IsError)
	assert.Contains(t, result.Message, "No matches found")
}
