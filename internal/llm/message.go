// Package llm defines the provider-agnostic chat message and streaming
// contract used by the scheduler. The concrete wire protocol to any given
// provider (HTTP/SSE, retries at the transport level, auth) is out of
// scope; this package only specifies the shape a provider client must
// expose and the error classification that drives the scheduler's retry
// policy.
package llm

import (
	"context"
	"encoding/json"
)

// Role is the role of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartKind discriminates a Part's variant.
type PartKind string

const (
	PartText     PartKind = "text"
	PartImageURL PartKind = "image_url"
	PartAudioURL PartKind = "audio_url"
	PartVideoURL PartKind = "video_url"
	PartThink    PartKind = "think"
)

// Part is one ordered content part of a Message. Exactly one of the
// kind-specific fields is populated, selected by Kind.
type Part struct {
	Kind PartKind `json:"kind"`

	Text string `json:"text,omitempty"`
	URL  string `json:"url,omitempty"`

	// ThinkKind and ThinkText are populated when Kind == PartThink.
	ThinkKind string `json:"think_kind,omitempty"`
	ThinkText string `json:"think_text,omitempty"`
}

// MergeInPlace reports whether next can be folded into p (same kind,
// both text-like), appending next's text onto p and returning true; the
// scheduler's streaming accumulator uses this to merge adjacent deltas
// of the same kind instead of appending a new part for every chunk.
func (p *Part) MergeInPlace(next Part) bool {
	if p.Kind != next.Kind {
		return false
	}
	switch p.Kind {
	case PartText:
		p.Text += next.Text
		return true
	case PartThink:
		if p.ThinkKind != next.ThinkKind {
			return false
		}
		p.ThinkText += next.ThinkText
		return true
	default:
		return false
	}
}

// IsThink reports whether this part is a Think part; compaction strips
// these from both inputs and outputs.
func (p Part) IsThink() bool { return p.Kind == PartThink }

// ToolCall is a single function call requested by the assistant.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON string
}

// Message is one entry in a Context's message log.
type Message struct {
	Role       Role       `json:"role"`
	Content    []Part     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Partial    bool       `json:"partial,omitempty"`
}

// Text returns the concatenation of all non-Think text parts.
func (m Message) Text() string {
	var out string
	for _, p := range m.Content {
		if p.Kind == PartText {
			out += p.Text
		}
	}
	return out
}

// StripThink returns a copy of m with Think parts removed.
func (m Message) StripThink() Message {
	out := m
	out.Content = make([]Part, 0, len(m.Content))
	for _, p := range m.Content {
		if !p.IsThink() {
			out.Content = append(out.Content, p)
		}
	}
	return out
}

// System builds a system-role message from plain text.
func System(text string) Message {
	return Message{Role: RoleSystem, Content: []Part{{Kind: PartText, Text: text}}}
}

// UserText builds a user-role message from plain text.
func UserText(text string) Message {
	return Message{Role: RoleUser, Content: []Part{{Kind: PartText, Text: text}}}
}

// ToolDefinition describes one callable tool for the provider's function-
// calling surface.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// StreamChunkType discriminates a StreamChunk's payload.
type StreamChunkType string

const (
	ChunkContent  StreamChunkType = "content"
	ChunkToolCall StreamChunkType = "tool_call"
	ChunkDone     StreamChunkType = "done"
)

// StreamChunk is one unit of an in-flight generation. ToolCall parts may
// arrive incrementally (a partial ID/name/arguments fragment); the
// scheduler's accumulator is responsible for assembling complete calls
// and silently drops a call that never completes before the stream ends.
type StreamChunk struct {
	Type     StreamChunkType
	Part     Part
	ToolCall *ToolCall
}

// Client is the provider-agnostic chat interface. Implementations convert
// ChatProviderErrorKind per the taxonomy in internal/errs so the scheduler
// can classify retryability without provider-specific knowledge.
type Client interface {
	// Stream issues one generation request and returns a channel of
	// StreamChunks, closed when the stream ends (successfully or in
	// error). The final error, if any, is delivered via the returned
	// error channel exactly once.
	Stream(ctx context.Context, messages []Message, tools []ToolDefinition) (<-chan StreamChunk, <-chan error)
}

// MarshalArguments is a convenience for tools constructing a ToolCall in
// tests.
func MarshalArguments(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
