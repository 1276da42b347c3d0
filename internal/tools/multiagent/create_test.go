package multiagent

import (
	"context"
	"testing"

	"github.com/kagent-go/kagent/internal/agent"
	"github.com/kagent-go/kagent/internal/approval"
	"github.com/kagent-go/kagent/internal/denwarenji"
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

func TestCreateSubagentSucceedsAndListsSortedNames(t *testing.T) {
	rt := newFakeRuntime()
	require.NoError(t, rt.labor.AddStaticSubagent(&agent.Agent{Name: "zeta"}))
	tool := New(toolset.New(), rt)

	result := tool.Call(context.Background(), []byte(`{"name":"alpha","system_prompt":"be helpful"}`))

	require.False(t, result.IsError)
	assert.Equal(t, "Subagent 'alpha' created successfully.", result.Message)
	assert.Equal(t, toolset.TextOutput("Available subagents: alpha, zeta"), result.Output)

	got, ok := rt.labor.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "be helpful", got.SystemPrompt)
}

func TestCreateSubagentDuplicateNameErrors(t *testing.T) {
	rt := newFakeRuntime()
	require.NoError(t, rt.labor.AddStaticSubagent(&agent.Agent{Name: "reviewer"}))
	tool := New(toolset.New(), rt)

	result := tool.Call(context.Background(), []byte(`{"name":"reviewer","system_prompt":"x"}`))

	require.True(t, result.IsError)
	assert.Equal(t, "Subagent already exists", result.Brief)
}

func TestCreateSubagentInvalidArguments(t *testing.T) {
	rt := newFakeRuntime()
	tool := New(toolset.New(), rt)

	result := tool.Call(context.Background(), []byte(`not json`))

	require.True(t, result.IsError)
	assert.Equal(t, "Invalid arguments", result.Brief)
}
