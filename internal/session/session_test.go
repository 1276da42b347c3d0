package session

import (
	"os"
	"testing"
	"time"

	kctx "github.com/kagent-go/kagent/internal/context"
	"github.com/kagent-go/kagent/internal/llm"
	"github.com/kagent-go/kagent/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withShareDir(t *testing.T) {
	t.Helper()
	t.Setenv("KIMI_SHARE_DIR", t.TempDir())
}

func writeWireUserInput(t *testing.T, s *Session, text string) {
	t.Helper()
	f, err := wire.Open(s.WireFile())
	require.NoError(t, err)
	msg, err := wire.NewMessage(wire.TypeUserInput, wire.UserInputPayload{Text: text})
	require.NoError(t, err)
	require.NoError(t, f.AppendMessage(msg))
}

func writeContextMessage(t *testing.T, s *Session, text string) {
	t.Helper()
	ctx := kctx.Open(s.ContextFile())
	require.NoError(t, ctx.Append(llm.UserText(text)))
}

func TestCreateSetsFallbackTitleAndTouchesContextFile(t *testing.T) {
	withShareDir(t)
	s, err := Create(t.TempDir(), nil)
	require.NoError(t, err)

	assert.Contains(t, s.Title, "Untitled (")
	_, statErr := os.Stat(s.ContextFile())
	assert.NoError(t, statErr)
}

func TestFindUsesWireTitle(t *testing.T) {
	withShareDir(t)
	workspace := t.TempDir()
	s, err := Create(workspace, nil)
	require.NoError(t, err)
	writeWireUserInput(t, s, "hello world from wire file")

	found, ok := Find(workspace, s.ID)
	require.True(t, ok)
	assert.Equal(t, "hello world from wire file", found.Title)
}

func TestFindFallsBackToContextTitle(t *testing.T) {
	withShareDir(t)
	workspace := t.TempDir()
	s, err := Create(workspace, nil)
	require.NoError(t, err)
	writeContextMessage(t, s, "first message only in context")

	found, ok := Find(workspace, s.ID)
	require.True(t, ok)
	assert.Equal(t, "first message only in context", found.Title)
}

func TestListSortsByUpdatedDescending(t *testing.T) {
	withShareDir(t)
	workspace := t.TempDir()

	first, err := Create(workspace, nil)
	require.NoError(t, err)
	second, err := Create(workspace, nil)
	require.NoError(t, err)

	writeContextMessage(t, first, "old session title")
	writeContextMessage(t, second, "new session title that is slightly longer")

	now := time.Now()
	old := now.Add(-10 * time.Second)
	require.NoError(t, os.Chtimes(first.ContextFile(), old, old))
	require.NoError(t, os.Chtimes(second.ContextFile(), now, now))

	sessions := List(workspace)
	require.Len(t, sessions, 2)
	assert.Equal(t, second.ID, sessions[0].ID)
	assert.Equal(t, first.ID, sessions[1].ID)
}

func TestListIgnoresEmptySessions(t *testing.T) {
	withShareDir(t)
	workspace := t.TempDir()

	empty, err := Create(workspace, nil)
	require.NoError(t, err)
	populated, err := Create(workspace, nil)
	require.NoError(t, err)
	writeContextMessage(t, populated, "persisted user message")

	sessions := List(workspace)
	require.Len(t, sessions, 1)
	assert.Equal(t, populated.ID, sessions[0].ID)
	for _, s := range sessions {
		assert.NotEqual(t, empty.ID, s.ID)
	}
}

func TestContinueWithoutPriorSessionsReturnsFalse(t *testing.T) {
	withShareDir(t)
	_, ok := Continue(t.TempDir())
	assert.False(t, ok)
}

func TestCreateNamedSession(t *testing.T) {
	withShareDir(t)
	workspace := t.TempDir()

	name := "my-named-session"
	s, err := Create(workspace, &name)
	require.NoError(t, err)
	assert.Equal(t, name, s.ID)

	found, ok := Find(workspace, name)
	require.True(t, ok)
	assert.Equal(t, name, found.ID)
}

func TestWorkspacesHashToDistinctSessionDirs(t *testing.T) {
	withShareDir(t)
	a, err := Create(t.TempDir(), nil)
	require.NoError(t, err)
	b, err := Create(t.TempDir(), nil)
	require.NoError(t, err)

	assert.NotEqual(t, a.Dir(), b.Dir())
}
