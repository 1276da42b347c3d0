package shell

import (
	"context"
	"testing"

	"github.com/kagent-go/kagent/internal/approval"
	"github.com/kagent-go/kagent/internal/toolset"
	"github.com/kagent-go/kagent/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dispatch(t *testing.T, appr *approval.Approval, argsJSON string) toolset.ReturnValue {
	t.Helper()
	ts := toolset.New()
	require.NoError(t, ts.Add(New(appr)))
	result := ts.Dispatch(context.Background(), toolset.ToolCall{ID: "call-1", Name: "Shell", Arguments: argsJSON}, nil)
	return result.ReturnValue
}

func TestShellRunsApprovedCommand(t *testing.T) {
	appr := approval.New()
	appr.SetYOLO(true)

	result := dispatch(t, appr, `{"command":"echo hello"}`)

	require.False(t, result.IsError)
	assert.Contains(t, string(result.Output.(toolset.TextOutput)), "hello")
}

func TestShellRejectedCommandIsNotRun(t *testing.T) {
	appr := approval.New()

	go func() {
		req, err := appr.FetchRequest(context.Background())
		if err == nil {
			_ = appr.ResolveRequest(req.ID, wire.Reject)
		}
	}()

	result := dispatch(t, appr, `{"command":"echo hello"}`)

	require.True(t, result.IsError)
	assert.Equal(t, "Rejected by user", result.Brief)
}

func TestShellEmptyCommandErrors(t *testing.T) {
	appr := approval.New()
	appr.SetYOLO(true)
	tool := New(appr)

	result := tool.Call(context.Background(), []byte(`{"command":""}`))

	require.True(t, result.IsError)
	assert.Equal(t, "Empty command", result.Brief)
}

func TestShellNonZeroExitReportsExitCode(t *testing.T) {
	appr := approval.New()
	appr.SetYOLO(true)

	result := dispatch(t, appr, `{"command":"exit 3"}`)

	require.True(t, result.IsError)
	assert.Equal(t, "Failed with exit code: 3", result.Brief)
}

func TestShellInvalidArguments(t *testing.T) {
	appr := approval.New()
	tool := New(appr)

	result := tool.Call(context.Background(), []byte(`not json`))

	require.True(t, result.IsError)
	assert.Equal(t, "Invalid arguments", result.Brief)
}
