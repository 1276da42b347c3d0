package task

import (
	"context"
	"testing"

	"github.com/kagent-go/kagent/internal/agent"
	"github.com/kagent-go/kagent/internal/approval"
	"github.com/kagent-go/kagent/internal/denwarenji"
	"github.com/kagent-go/kagent/internal/llm"
	"github.com/kagent-go/kagent/internal/scheduler"
	"github.com/kagent-go/kagent/internal/toolset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuntime struct {
	approval *approval.Approval
	dmail    *denwarenji.DenwaRenji
	labor    *agent.LaborMarket
}

func (f *fakeRuntime) Approval() *approval.Approval  { return f.approval }
func (f *fakeRuntime) DMail() *denwarenji.DenwaRenji { return f.dmail }
func (f *fakeRuntime) Labor() *agent.LaborMarket     { return f.labor }

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{approval: approval.New(), dmail: denwarenji.New(), labor: agent.NewLaborMarket()}
}

func TestTaskDelegatesAndReturnsFinalReply(t *testing.T) {
	rt := newFakeRuntime()
	client := llm.NewFakeClient(llm.ScriptedResponse{Chunks: []llm.StreamChunk{
		{Type: llm.ChunkContent, Part: llm.Part{Kind: llm.PartText, Text: "summary complete"}},
		{Type: llm.ChunkDone},
	}})
	sub := &agent.Agent{Name: "summarizer", SystemPrompt: "summarize things", Toolset: toolset.New(), Runtime: rt}
	require.NoError(t, rt.labor.AddStaticSubagent(sub))

	tool := New(rt.labor, client, t.TempDir(), scheduler.DefaultLimits())
	result := tool.Call(context.Background(), []byte(`{"agent":"summarizer","task":"summarize this doc"}`))

	require.False(t, result.IsError)
	assert.Equal(t, toolset.TextOutput("[Delegated to: summarizer]\n\nsummary complete"), result.Output)
	assert.Equal(t, "Subagent 'summarizer' finished.", result.Message)
}

func TestTaskUnknownAgentErrors(t *testing.T) {
	rt := newFakeRuntime()
	client := llm.NewFakeClient()
	tool := New(rt.labor, client, t.TempDir(), scheduler.DefaultLimits())

	result := tool.Call(context.Background(), []byte(`{"agent":"ghost","task":"do something"}`))

	require.True(t, result.IsError)
	assert.Equal(t, "Agent 'ghost' not found", result.Brief)
}

func TestTaskInvalidArguments(t *testing.T) {
	rt := newFakeRuntime()
	client := llm.NewFakeClient()
	tool := New(rt.labor, client, t.TempDir(), scheduler.DefaultLimits())

	result := tool.Call(context.Background(), []byte(`not json`))

	require.True(t, result.IsError)
	assert.Equal(t, "Invalid arguments", result.Brief)
}

func TestTaskPropagatesSchedulerFailure(t *testing.T) {
	rt := newFakeRuntime()
	client := llm.NewFakeClient() // no scripted responses: immediately errors
	sub := &agent.Agent{Name: "flaky", SystemPrompt: "x", Toolset: toolset.New(), Runtime: rt}
	require.NoError(t, rt.labor.AddStaticSubagent(sub))

	limits := scheduler.DefaultLimits()
	limits.MaxRetriesPerStep = 0
	tool := New(rt.labor, client, t.TempDir(), limits)
	result := tool.Call(context.Background(), []byte(`{"agent":"flaky","task":"go"}`))

	require.True(t, result.IsError)
	assert.Equal(t, "Subagent execution failed", result.Brief)
}
