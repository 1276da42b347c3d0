// Package context implements the persistent, append-only message log
// described in SPEC_FULL.md §4.5: restore-on-start, append-and-flush,
// clear, and a checkpoint counter consulted by the D-Mail hook. Grounded
// on wire/file.rs's append-and-flush journal discipline (reused here for
// the same durability contract) and kadirpekel-hector/pkg/checkpoint/manager.go
// for the checkpoint lifecycle naming.
package context

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kagent-go/kagent/internal/llm"
)

// Context is the ordered sequence of Messages plus a checkpoint counter.
// Single-writer (the scheduler); tail reads are safe for concurrent
// readers via the RWMutex.
type Context struct {
	mu       sync.RWMutex
	path     string
	messages []llm.Message
	nextCkpt int64
}

// Open creates a Context backed by path. Call Restore to replay an
// existing file.
func Open(path string) *Context {
	return &Context{path: path}
}

// Restore replays the backing file if present, preserving Partial flags.
// No-op if the file does not exist.
func (c *Context) Restore() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	file, err := os.Open(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("context %q: %w", c.path, err)
	}
	defer file.Close()

	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var restored []llm.Message
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		var msg llm.Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			return fmt.Errorf("context %q: corrupt record: %w", c.path, err)
		}
		restored = append(restored, msg)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("context %q: %w", c.path, err)
	}
	c.messages = restored
	return nil
}

// Append writes msg to the backing file and in-memory log, flushing
// immediately.
func (c *Context) Append(msg llm.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appendLocked(msg)
}

// AppendAll appends several messages atomically with respect to other
// Append/AppendAll calls.
func (c *Context) AppendAll(msgs []llm.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range msgs {
		if err := c.appendLocked(m); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) appendLocked(msg llm.Message) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("context %q: %w", c.path, err)
	}
	file, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("context %q: %w", c.path, err)
	}
	defer file.Close()

	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if _, err := file.Write(append(b, '\n')); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		return err
	}
	c.messages = append(c.messages, msg)
	return nil
}

// Clear truncates the context: both the in-memory log and the backing
// file.
func (c *Context) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("context %q: %w", c.path, err)
	}
	return os.WriteFile(c.path, nil, 0o644)
}

// Messages returns a snapshot of the current message log.
func (c *Context) Messages() []llm.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]llm.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages currently held.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Checkpoint is a monotonically numbered context position.
type Checkpoint struct {
	ID       int64
	Position int
}

// NextCheckpoint increments and returns a new Checkpoint pinned to the
// context's current length. The scheduler calls this at step boundaries.
func (c *Context) NextCheckpoint() Checkpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	ckpt := Checkpoint{ID: c.nextCkpt, Position: len(c.messages)}
	c.nextCkpt++
	return ckpt
}

// CheckpointCount returns how many checkpoints have been issued so far;
// this is the n_checkpoints the D-Mail hook validates against.
func (c *Context) CheckpointCount() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nextCkpt
}

// RewindTo discards the message suffix after ckpt.Position, replacing the
// in-memory log and rewriting the backing file to match.
func (c *Context) RewindTo(ckpt Checkpoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ckpt.Position < 0 || ckpt.Position > len(c.messages) {
		return fmt.Errorf("context: checkpoint position %d out of range (len=%d)", ckpt.Position, len(c.messages))
	}
	c.messages = c.messages[:ckpt.Position]
	return c.rewriteLocked()
}

// ReplacePrefix replaces messages[0:cutAt] with newPrefix,
// keeping the suffix from cutAt onward untouched. Used by the compaction
// policy to substitute the compacted head while preserving the tail
// byte-for-byte.
func (c *Context) ReplacePrefix(cutAt int, newPrefix []llm.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cutAt < 0 || cutAt > len(c.messages) {
		return fmt.Errorf("context: cut index %d out of range (len=%d)", cutAt, len(c.messages))
	}
	suffix := append([]llm.Message(nil), c.messages[cutAt:]...)
	c.messages = append(append([]llm.Message(nil), newPrefix...), suffix...)
	return c.rewriteLocked()
}

func (c *Context) rewriteLocked() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("context %q: %w", c.path, err)
	}
	file, err := os.OpenFile(c.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("context %q: %w", c.path, err)
	}
	defer file.Close()
	for _, m := range c.messages {
		b, err := json.Marshal(m)
		if err != nil {
			return err
		}
		if _, err := file.Write(append(b, '\n')); err != nil {
			return err
		}
	}
	return file.Sync()
}
