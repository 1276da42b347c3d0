// Package compaction implements the tail-preserving compaction policy
// described in SPEC_FULL.md §4.6. Grounded byte-exactly on
// soul/compaction.rs, including the three unit tests this package's
// tests mirror.
package compaction

import (
	"context"
	"fmt"

	"github.com/kagent-go/kagent/internal/llm"
)

// compactionSystemPrompt is the dedicated system prompt for the
// auxiliary LLM call.
const compactionSystemPrompt = "You are a helpful assistant that compacts conversation context."

// compactionInstruction is appended to the synthetic compaction message,
// mirroring the original's prompts::COMPACT constant.
const compactionInstruction = "Please summarize the conversation above concisely, preserving important facts, decisions, and any outstanding tasks."

// compactedMarker opens the replacement head message. The "<system>"
// prefix is literal text, per scenario S5 in SPEC_FULL.md §8 ("...first
// text part begins with \"<system>Previous context has been
// compacted.\""), not a separate system-role message — the replacement
// is always a single user-role message.
const compactedMarker = "<system>Previous context has been compacted. Here is the compaction output:"

// SimpleCompaction keeps the last MaxPreservedMessages user-or-assistant
// turns verbatim and summarizes everything before them via an auxiliary
// LLM call.
type SimpleCompaction struct {
	MaxPreservedMessages int
}

// New creates a SimpleCompaction with the given tail size.
func New(maxPreservedMessages int) *SimpleCompaction {
	return &SimpleCompaction{MaxPreservedMessages: maxPreservedMessages}
}

type prepareResult struct {
	compactMessage *llm.Message
	toPreserve     []llm.Message
}

// prepare scans from the tail keeping the last MaxPreservedMessages
// user-or-assistant messages; if fewer than that many exist, it is a
// no-op (compactMessage == nil).
func (s *SimpleCompaction) prepare(messages []llm.Message) prepareResult {
	if len(messages) == 0 || s.MaxPreservedMessages == 0 {
		return prepareResult{toPreserve: append([]llm.Message(nil), messages...)}
	}

	preserveStart := len(messages)
	preserved := 0
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser || messages[i].Role == llm.RoleAssistant {
			preserved++
			if preserved == s.MaxPreservedMessages {
				preserveStart = i
				break
			}
		}
	}

	if preserved < s.MaxPreservedMessages {
		return prepareResult{toPreserve: append([]llm.Message(nil), messages...)}
	}

	toCompact := messages[:preserveStart]
	toPreserve := append([]llm.Message(nil), messages[preserveStart:]...)

	if len(toCompact) == 0 {
		return prepareResult{toPreserve: toPreserve}
	}

	compactMsg := llm.Message{Role: llm.RoleUser}
	for idx, msg := range toCompact {
		header := fmt.Sprintf("## Message %d\nRole: %s\nContent:\n", idx+1, roleLabel(msg.Role))
		compactMsg.Content = append(compactMsg.Content, llm.Part{Kind: llm.PartText, Text: header})
		for _, part := range msg.Content {
			if !part.IsThink() {
				compactMsg.Content = append(compactMsg.Content, part)
			}
		}
	}
	compactMsg.Content = append(compactMsg.Content, llm.Part{Kind: llm.PartText, Text: "\n" + compactionInstruction})

	return prepareResult{compactMessage: &compactMsg, toPreserve: toPreserve}
}

func roleLabel(r llm.Role) string {
	switch r {
	case llm.RoleSystem:
		return "system"
	case llm.RoleUser:
		return "user"
	case llm.RoleAssistant:
		return "assistant"
	case llm.RoleTool:
		return "tool"
	default:
		return string(r)
	}
}

// Step runs one auxiliary generation, given an LLM client, to turn a
// single user message into an assistant reply. Scheduler injects its own
// client implementation via this narrow interface so compaction stays
// decoupled from the scheduler's retry machinery.
type Stepper interface {
	Step(ctx context.Context, systemPrompt string, messages []llm.Message) (llm.Message, error)
}

// Compact runs the full policy: prepare, invoke the auxiliary LLM step
// with an empty toolset and the dedicated system prompt, and splice the
// compacted head back in front of the preserved tail. If prepare found
// nothing to compact, messages is returned unchanged and compacted is
// false — the caller (the scheduler) uses that to skip rewriting the
// context store and emitting CompactionBegin/End.
func (s *SimpleCompaction) Compact(ctx context.Context, stepper Stepper, messages []llm.Message) (out []llm.Message, compacted bool, err error) {
	prepared := s.prepare(messages)
	if prepared.compactMessage == nil {
		return prepared.toPreserve, false, nil
	}

	result, err := stepper.Step(ctx, compactionSystemPrompt, []llm.Message{*prepared.compactMessage})
	if err != nil {
		return nil, false, err
	}

	head := llm.Message{Role: llm.RoleUser, Content: []llm.Part{{Kind: llm.PartText, Text: compactedMarker}}}
	for _, part := range result.Content {
		if !part.IsThink() {
			head.Content = append(head.Content, part)
		}
	}

	out = make([]llm.Message, 0, 1+len(prepared.toPreserve))
	out = append(out, head)
	out = append(out, prepared.toPreserve...)
	return out, true, nil
}
