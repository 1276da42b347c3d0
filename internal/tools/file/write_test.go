package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kagent-go/kagent/internal/approval"
	"github.com/kagent-go/kagent/internal/toolset"
	"github.com/kagent-go/kagent/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dispatchFile(t *testing.T, tool toolset.Tool, argsJSON string) toolset.ReturnValue {
	t.Helper()
	ts := toolset.New()
	require.NoError(t, ts.Add(tool))
	result := ts.Dispatch(context.Background(), toolset.ToolCall{ID: "call-1", Name: tool.Name(), Arguments: argsJSON}, nil)
	return result.ReturnValue
}

func TestWriteFileOverwritesNewFile(t *testing.T) {
	dir := t.TempDir()
	appr := approval.New()
	appr.SetYOLO(true)
	tool := NewWriteFile(dir, appr)

	result := dispatchFile(t, tool, `{"path":"out.txt","content":"hello"}`)

	require.False(t, result.IsError)
	contents, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(contents))
}

func TestWriteFileAppendsToExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(path, []byte("one"), 0o644))

	appr := approval.New()
	appr.SetYOLO(true)
	tool := NewWriteFile(dir, appr)

	result := dispatchFile(t, tool, `{"path":"out.txt","content":"two","mode":"append"}`)

	require.False(t, result.IsError)
	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "onetwo", string(contents))
}

func TestWriteFileRejectedLeavesFileUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o644))

	appr := approval.New()
	go func() {
		req, err := appr.FetchRequest(context.Background())
		if err == nil {
			_ = appr.ResolveRequest(req.ID, wire.Reject)
		}
	}()
	tool := NewWriteFile(dir, appr)

	result := dispatchFile(t, tool, `{"path":"out.txt","content":"new"}`)

	require.True(t, result.IsError)
	assert.Equal(t, "Rejected by user", result.Brief)
	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(contents))
}

func TestWriteFileMissingParentDirectory(t *testing.T) {
	dir := t.TempDir()
	appr := approval.New()
	appr.SetYOLO(true)
	tool := NewWriteFile(dir, appr)

	result := dispatchFile(t, tool, `{"path":"nope/out.txt","content":"hello"}`)

	require.True(t, result.IsError)
	assert.Equal(t, "Parent directory not found", result.Brief)
}
