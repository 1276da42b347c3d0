package context

import (
	"path/filepath"
	"testing"

	"github.com/kagent-go/kagent/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndRestore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "context.jsonl")
	c := Open(path)
	require.NoError(t, c.Append(llm.UserText("hello")))
	require.NoError(t, c.Append(llm.Message{Role: llm.RoleAssistant, Content: []llm.Part{{Kind: llm.PartText, Text: "hi"}}, Partial: true}))

	c2 := Open(path)
	require.NoError(t, c2.Restore())
	msgs := c2.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Text())
	assert.True(t, msgs[1].Partial)
}

func TestClearTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "context.jsonl")
	c := Open(path)
	require.NoError(t, c.Append(llm.UserText("x")))
	require.NoError(t, c.Clear())
	assert.Equal(t, 0, c.Len())

	c2 := Open(path)
	require.NoError(t, c2.Restore())
	assert.Equal(t, 0, c2.Len())
}

func TestCheckpointsMonotonicAndBounded(t *testing.T) {
	c := Open(filepath.Join(t.TempDir(), "context.jsonl"))
	require.NoError(t, c.Append(llm.UserText("a")))

	ck0 := c.NextCheckpoint()
	require.NoError(t, c.Append(llm.UserText("b")))
	ck1 := c.NextCheckpoint()

	assert.Equal(t, int64(0), ck0.ID)
	assert.Equal(t, int64(1), ck1.ID)
	assert.Equal(t, int64(2), c.CheckpointCount())
	assert.True(t, ck0.Position < ck1.Position)
}

func TestRewindToDiscardsSuffix(t *testing.T) {
	c := Open(filepath.Join(t.TempDir(), "context.jsonl"))
	require.NoError(t, c.Append(llm.UserText("a")))
	ck := c.NextCheckpoint()
	require.NoError(t, c.Append(llm.UserText("b")))
	require.NoError(t, c.Append(llm.UserText("c")))

	require.NoError(t, c.RewindTo(ck))
	msgs := c.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "a", msgs[0].Text())
}

func TestReplacePrefixPreservesSuffixByteEqual(t *testing.T) {
	c := Open(filepath.Join(t.TempDir(), "context.jsonl"))
	for _, text := range []string{"1", "2", "3", "4", "5"} {
		require.NoError(t, c.Append(llm.UserText(text)))
	}
	before := c.Messages()
	suffix := append([]llm.Message(nil), before[3:]...)

	require.NoError(t, c.ReplacePrefix(3, []llm.Message{llm.UserText("compacted")}))
	after := c.Messages()
	require.Len(t, after, 3)
	assert.Equal(t, "compacted", after[0].Text())
	assert.Equal(t, suffix, after[1:])
}
