package compaction

import (
	"context"
	"testing"

	"github.com/kagent-go/kagent/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPrepareReturnsOriginalWhenNotEnoughMessages mirrors
// test_prepare_returns_original_when_not_enough_messages: a single
// message can never satisfy max_preserved_messages=2, so prepare is a
// no-op.
func TestPrepareReturnsOriginalWhenNotEnoughMessages(t *testing.T) {
	s := New(2)
	messages := []llm.Message{llm.UserText("only one")}

	result := s.prepare(messages)

	assert.Nil(t, result.compactMessage)
	assert.Equal(t, messages, result.toPreserve)
}

// TestPrepareSkipsCompactionWithOnlyPreservedMessages mirrors
// test_prepare_skips_compaction_with_only_preserved_messages: exactly
// max_preserved_messages user/assistant turns exist and nothing precedes
// them, so to_compact would be empty and prepare is a no-op.
func TestPrepareSkipsCompactionWithOnlyPreservedMessages(t *testing.T) {
	s := New(2)
	messages := []llm.Message{
		llm.UserText("question"),
		{Role: llm.RoleAssistant, Content: []llm.Part{{Kind: llm.PartText, Text: "answer"}}},
	}

	result := s.prepare(messages)

	assert.Nil(t, result.compactMessage)
	assert.Equal(t, messages, result.toPreserve)
}

// TestPrepareBuildsCompactMessageAndPreservesTail mirrors
// test_prepare_builds_compact_message_and_preserves_tail: System/User(with
// a Think part)/Assistant get folded into the compact message; the last
// User/Assistant pair is preserved untouched. The Think part in the
// second message must not appear in the rendered compact message.
func TestPrepareBuildsCompactMessageAndPreservesTail(t *testing.T) {
	s := New(2)
	messages := []llm.Message{
		llm.System("be helpful"),
		{Role: llm.RoleUser, Content: []llm.Part{
			{Kind: llm.PartThink, ThinkKind: "reasoning", ThinkText: "pondering"},
			{Kind: llm.PartText, Text: "old question"},
		}},
		{Role: llm.RoleAssistant, Content: []llm.Part{{Kind: llm.PartText, Text: "old answer"}}},
		llm.UserText("latest question"),
		{Role: llm.RoleAssistant, Content: []llm.Part{{Kind: llm.PartText, Text: "latest answer"}}},
	}

	result := s.prepare(messages)

	require.NotNil(t, result.compactMessage)
	assert.Equal(t, llm.RoleUser, result.compactMessage.Role)

	text := result.compactMessage.Text()
	assert.Contains(t, text, "## Message 1\nRole: system\nContent:\n")
	assert.Contains(t, text, "be helpful")
	assert.Contains(t, text, "## Message 2\nRole: user\nContent:\n")
	assert.Contains(t, text, "old question")
	assert.NotContains(t, text, "pondering")
	assert.Contains(t, text, "## Message 3\nRole: assistant\nContent:\n")
	assert.Contains(t, text, "old answer")
	assert.Contains(t, text, compactionInstruction)

	for _, p := range result.compactMessage.Content {
		assert.False(t, p.IsThink())
	}

	assert.Equal(t, messages[3:], result.toPreserve)
}

type fakeStepper struct {
	reply llm.Message
	err   error
	calls int
}

func (f *fakeStepper) Step(_ context.Context, _ string, _ []llm.Message) (llm.Message, error) {
	f.calls++
	return f.reply, f.err
}

// TestCompactSplicesAuxiliaryReplyAheadOfPreservedTail is the Go analogue
// of scenario S5: the auxiliary call's (Think-stripped) output becomes a
// single new head message prefixed with the compacted marker, and the
// preserved tail is untouched.
func TestCompactSplicesAuxiliaryReplyAheadOfPreservedTail(t *testing.T) {
	s := New(2)
	messages := []llm.Message{
		llm.System("be helpful"),
		llm.UserText("old question"),
		{Role: llm.RoleAssistant, Content: []llm.Part{{Kind: llm.PartText, Text: "old answer"}}},
		llm.UserText("latest question"),
		{Role: llm.RoleAssistant, Content: []llm.Part{{Kind: llm.PartText, Text: "latest answer"}}},
	}
	stepper := &fakeStepper{reply: llm.Message{
		Role: llm.RoleAssistant,
		Content: []llm.Part{
			{Kind: llm.PartThink, ThinkKind: "reasoning", ThinkText: "summarizing"},
			{Kind: llm.PartText, Text: "summary of earlier turns"},
		},
	}}

	out, compacted, err := s.Compact(context.Background(), stepper, messages)
	require.NoError(t, err)
	require.True(t, compacted)
	require.Equal(t, 1, stepper.calls)

	require.Len(t, out, 3)
	assert.Equal(t, llm.RoleUser, out[0].Role)
	assert.Contains(t, out[0].Text(), compactedMarker)
	assert.Contains(t, out[0].Text(), "summary of earlier turns")
	for _, p := range out[0].Content {
		assert.False(t, p.IsThink())
	}
	assert.Equal(t, messages[3:], out[1:])
}

// TestCompactNoOpWhenNotEnoughMessages ensures Compact never calls the
// auxiliary stepper when prepare found nothing to compact.
func TestCompactNoOpWhenNotEnoughMessages(t *testing.T) {
	s := New(2)
	messages := []llm.Message{llm.UserText("only one")}
	stepper := &fakeStepper{}

	out, compacted, err := s.Compact(context.Background(), stepper, messages)
	require.NoError(t, err)
	assert.False(t, compacted)
	assert.Equal(t, messages, out)
	assert.Equal(t, 0, stepper.calls)
}
