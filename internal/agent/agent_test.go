package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddStaticSubagentThenGet(t *testing.T) {
	m := NewLaborMarket()
	a := &Agent{Name: "reviewer"}
	require.NoError(t, m.AddStaticSubagent(a))

	got, ok := m.Get("reviewer")
	require.True(t, ok)
	assert.Same(t, a, got)
}

func TestAddDynamicSubagentDuplicateNameErrors(t *testing.T) {
	m := NewLaborMarket()
	require.NoError(t, m.AddStaticSubagent(&Agent{Name: "summarizer"}))

	err := m.AddDynamicSubagent(&Agent{Name: "summarizer"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestAllSubagentsUnionsStaticAndDynamic(t *testing.T) {
	m := NewLaborMarket()
	require.NoError(t, m.AddStaticSubagent(&Agent{Name: "a"}))
	require.NoError(t, m.AddDynamicSubagent(&Agent{Name: "b"}))

	all := m.AllSubagents()
	assert.Len(t, all, 2)
	assert.Contains(t, all, "a")
	assert.Contains(t, all, "b")
}

func TestSortedNamesAscending(t *testing.T) {
	m := NewLaborMarket()
	require.NoError(t, m.AddDynamicSubagent(&Agent{Name: "zeta"}))
	require.NoError(t, m.AddDynamicSubagent(&Agent{Name: "alpha"}))
	require.NoError(t, m.AddDynamicSubagent(&Agent{Name: "mu"}))

	assert.Equal(t, []string{"alpha", "mu", "zeta"}, m.SortedNames())
}
