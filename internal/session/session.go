// Package session implements workspace-scoped session discovery and
// layout: where a session's wire and context journals live on disk, how
// a fresh session is created, and how prior sessions for a workspace are
// found, listed, and resumed. Grounded authoritatively on
// tests/session.rs (Create/Find/List/Continue semantics, fallback title,
// empty-session filtering, updated-at sort) and spec.md §6.5's on-disk
// layout.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kagent-go/kagent/internal/context"
	"github.com/kagent-go/kagent/internal/wire"
)

// Session is a single workspace-scoped conversation: an id, the
// workspace it belongs to, its on-disk directory, and the two journals
// living inside it.
type Session struct {
	ID            string
	WorkspacePath string
	Title         string
	UpdatedAt     time.Time

	dir string
}

// Dir returns the session's directory: <share>/sessions/<workspace-hash>/<id>.
func (s *Session) Dir() string { return s.dir }

// ContextFile returns the path to this session's context journal.
func (s *Session) ContextFile() string { return filepath.Join(s.dir, "context.jsonl") }

// WireFile returns the path to this session's wire journal.
func (s *Session) WireFile() string { return filepath.Join(s.dir, "wire.jsonl") }

// ShareDir resolves the data directory root: KIMI_SHARE_DIR if set,
// otherwise <home>/.kimi. Grounded on spec.md §6.6.
func ShareDir() string {
	if dir := os.Getenv("KIMI_SHARE_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".kimi")
}

// workspaceHash derives the per-workspace session directory name from the
// workspace's absolute path. Plain sha256 truncated to 16 hex characters:
// a fixed-width, collision-resistant directory name is all this needs,
// and the stdlib hash is exact and dependency-free for that.
func workspaceHash(workspacePath string) string {
	abs, err := filepath.Abs(workspacePath)
	if err != nil {
		abs = workspacePath
	}
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:])[:16]
}

func sessionsDir(workspacePath string) string {
	return filepath.Join(ShareDir(), "sessions", workspaceHash(workspacePath))
}

// Create starts a new session for workspacePath. If id is nil a fresh
// uuid is generated. The context file is touched immediately so callers
// can rely on it existing even before the first message is appended.
func Create(workspacePath string, id *string) (*Session, error) {
	sessionID := uuid.NewString()
	if id != nil && *id != "" {
		sessionID = *id
	}

	dir := filepath.Join(sessionsDir(workspacePath), sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session: create %q: %w", dir, err)
	}

	s := &Session{ID: sessionID, WorkspacePath: workspacePath, dir: dir}
	if _, err := os.OpenFile(s.ContextFile(), os.O_CREATE|os.O_WRONLY, 0o644); err != nil {
		return nil, fmt.Errorf("session: touch context file: %w", err)
	}

	s.Title = fmt.Sprintf("Untitled (%s)", time.Now().Format("2006-01-02 15:04:05"))
	s.UpdatedAt = time.Now()
	return s, nil
}

// Find locates an existing session by id within workspacePath, deriving
// its title and last-updated time from its journals.
func Find(workspacePath, id string) (*Session, bool) {
	dir := filepath.Join(sessionsDir(workspacePath), id)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, false
	}
	return load(workspacePath, id, dir), true
}

// List returns every non-empty session for workspacePath, most recently
// updated first.
func List(workspacePath string) []*Session {
	root := sessionsDir(workspacePath)
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}

	var sessions []*Session
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		s := load(workspacePath, e.Name(), filepath.Join(root, e.Name()))
		if isEmpty(s) {
			continue
		}
		sessions = append(sessions, s)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions
}

// Continue returns the most recently updated session for workspacePath,
// or false if there are none.
func Continue(workspacePath string) (*Session, bool) {
	sessions := List(workspacePath)
	if len(sessions) == 0 {
		return nil, false
	}
	return sessions[0], true
}

func load(workspacePath, id, dir string) *Session {
	s := &Session{ID: id, WorkspacePath: workspacePath, dir: dir}
	s.UpdatedAt = fileModTime(s.ContextFile())

	if title, ok := titleFromWire(s.WireFile()); ok {
		s.Title = title
	} else if title, ok := titleFromContext(s.ContextFile()); ok {
		s.Title = title
	} else {
		s.Title = fmt.Sprintf("Untitled (%s)", s.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return s
}

// isEmpty reports whether a session has never recorded a real turn: no
// context messages and no non-metadata wire records.
func isEmpty(s *Session) bool {
	info, err := os.Stat(s.ContextFile())
	if err == nil && info.Size() > 0 {
		return false
	}

	found := false
	_ = wireFileFor(s.WireFile()).IterRecords(func(wire.Record) bool {
		found = true
		return false
	})
	return !found
}

func wireFileFor(path string) *wire.File {
	f, err := wire.Open(path)
	if err != nil {
		return &wire.File{}
	}
	return f
}

const titleMaxLen = 80

// titleFromWire derives a session title from the first UserInput record
// in the wire journal, truncated to titleMaxLen runes.
func titleFromWire(path string) (string, bool) {
	var title string
	found := false
	_ = wireFileFor(path).IterRecords(func(rec wire.Record) bool {
		if rec.Message.Type != wire.TypeUserInput {
			return true
		}
		var payload wire.UserInputPayload
		if err := json.Unmarshal(rec.Message.Payload, &payload); err != nil {
			return true
		}
		title = truncateTitle(payload.Text)
		found = true
		return false
	})
	return title, found
}

// titleFromContext falls back to the first user message in the context
// journal for sessions whose wire journal never recorded a user_input
// event (no journal kept, or one predating that event).
func titleFromContext(path string) (string, bool) {
	ctx := context.Open(path)
	if err := ctx.Restore(); err != nil {
		return "", false
	}
	for _, msg := range ctx.Messages() {
		if text := msg.Text(); text != "" {
			return truncateTitle(text), true
		}
	}
	return "", false
}

func truncateTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= titleMaxLen {
		return text
	}
	return string(runes[:titleMaxLen])
}

func fileModTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
