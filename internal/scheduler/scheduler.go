// Package scheduler implements the turn/step state machine described in
// SPEC_FULL.md §4.10: IDLE -> GENERATING -> DISPATCHING -> RETRY WAIT ->
// TURN END, with compaction, D-Mail rewind, and cancellation wired in.
// Grounded on pkg/runner/runner.go's iterator-driven run loop and
// deferred-cleanup-chain pattern (clearTempState -> indexSession ->
// checkAndSummarize, reduced here to joinWire -> shutdownWire), adapted
// from its ADK session-tree semantics to this
// spec's generate/dispatch/compact loop.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kagent-go/kagent/internal/approval"
	"github.com/kagent-go/kagent/internal/compaction"
	ctxstore "github.com/kagent-go/kagent/internal/context"
	"github.com/kagent-go/kagent/internal/denwarenji"
	"github.com/kagent-go/kagent/internal/errs"
	"github.com/kagent-go/kagent/internal/llm"
	"github.com/kagent-go/kagent/internal/toolset"
	"github.com/kagent-go/kagent/internal/wire"
	"github.com/pkoukk/tiktoken-go"
)

// Limits bounds one turn's execution. Zero-value Limits is invalid; use
// DefaultLimits and override as needed.
type Limits struct {
	MaxStepsPerTurn     int
	MaxRetriesPerStep   int
	MaxRalphIterations  int
	MaxContextSize      int64
	ReservedContextSize int64
	// TerminatorTools names the tools whose invocation in the final step of
	// a turn satisfies the ralph-iteration exit condition. Empty means no
	// tool can ever satisfy it, so a positive MaxRalphIterations always
	// exhausts its budget.
	TerminatorTools []string
}

// DefaultLimits mirrors the specification's stated defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxStepsPerTurn:     100,
		MaxRetriesPerStep:   3,
		MaxRalphIterations:  0,
		MaxContextSize:      128_000,
		ReservedContextSize: 16_000,
	}
}

// Validate rejects a negative max_ralph_iterations, per spec.md §4.10
// ("A value of -1 or less is an error at config parse").
func (l Limits) Validate() error {
	if l.MaxRalphIterations < 0 {
		return fmt.Errorf("scheduler: max_ralph_iterations must be >= 0, got %d", l.MaxRalphIterations)
	}
	if l.MaxStepsPerTurn <= 0 {
		return fmt.Errorf("scheduler: max_steps_per_turn must be > 0, got %d", l.MaxStepsPerTurn)
	}
	if l.MaxRetriesPerStep < 0 {
		return fmt.Errorf("scheduler: max_retries_per_step must be >= 0, got %d", l.MaxRetriesPerStep)
	}
	return nil
}

// Scheduler drives turns against one Context, Toolset, and LLM Client.
// Not safe for concurrent Run calls against the same Scheduler; the
// specification's concurrency model is one goroutine per turn.
type Scheduler struct {
	client       llm.Client
	ctxStore     *ctxstore.Context
	toolset      *toolset.Toolset
	approvalC    *approval.Approval
	dmail        *denwarenji.DenwaRenji
	soul         *wire.SoulSide
	systemPrompt string
	compactor    *compaction.SimpleCompaction
	limits       Limits
	backoff      func(attempt int) time.Duration
	tokens       *tiktoken.Tiktoken

	// checkpointPositions maps a checkpoint id to the context length at
	// issuance, so a D-Mail rewind can resolve its checkpoint_id back to a
	// position; ctxstore.Context itself only tracks the running counter.
	checkpointPositions map[int64]int
}

// Option customizes a Scheduler at construction.
type Option func(*Scheduler)

// WithBackoff overrides the retry backoff function (attempt is 0-indexed,
// counting the first retry as attempt 0). Tests use a zero-duration
// backoff to run synchronously.
func WithBackoff(f func(attempt int) time.Duration) Option {
	return func(s *Scheduler) { s.backoff = f }
}

// WithCompactor overrides the compaction policy's preserved-tail size.
// Defaults to 10 preserved user/assistant turns.
func WithCompactor(c *compaction.SimpleCompaction) Option {
	return func(s *Scheduler) { s.compactor = c }
}

// WithModel selects the tiktoken encoding used for context-size
// estimation, matching the model actually being billed against. Unset
// (or a model tiktoken doesn't recognize) falls back to cl100k_base.
func WithModel(model string) Option {
	return func(s *Scheduler) { s.tokens = encodingForModel(model) }
}

// encodingCache memoizes tiktoken encodings per model, grounded on
// pkg/utils/tokens.go's encodingCache/NewTokenCounter.
var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	encodingMu    sync.RWMutex
)

func encodingForModel(model string) *tiktoken.Tiktoken {
	encodingMu.RLock()
	if enc, ok := encodingCache[model]; ok {
		encodingMu.RUnlock()
		return enc
	}
	encodingMu.RUnlock()

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil
		}
	}

	encodingMu.Lock()
	encodingCache[model] = enc
	encodingMu.Unlock()
	return enc
}

func defaultBackoff(attempt int) time.Duration {
	d := 200 * time.Millisecond * time.Duration(1<<attempt)
	if d > 5*time.Second {
		return 5 * time.Second
	}
	return d
}

// New builds a Scheduler. soul may be nil (no wire events emitted, used by
// subagents run without a UI).
func New(client llm.Client, ctxStore *ctxstore.Context, ts *toolset.Toolset, approvalC *approval.Approval, dmail *denwarenji.DenwaRenji, soul *wire.SoulSide, systemPrompt string, limits Limits, opts ...Option) *Scheduler {
	s := &Scheduler{
		client:              client,
		ctxStore:            ctxStore,
		toolset:             ts,
		approvalC:           approvalC,
		dmail:               dmail,
		soul:                soul,
		systemPrompt:        systemPrompt,
		compactor:           compaction.New(10),
		limits:              limits,
		backoff:             defaultBackoff,
		tokens:              encodingForModel(""),
		checkpointPositions: make(map[int64]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// countTokens counts messages against enc the way pkg/utils/tokens.go's
// TokenCounter.CountMessages does: a fixed per-message role/content
// delimiter overhead plus each message's encoded content, tool calls
// included as their name and raw argument text. A nil enc (the
// cl100k_base fallback itself failed to load) falls back to the
// chars/4 heuristic tiktoken-go's own EstimateTokensForText documents
// as its degraded mode.
func countTokens(enc *tiktoken.Tiktoken, messages []llm.Message) int64 {
	if enc == nil {
		var chars int64
		for _, m := range messages {
			for _, p := range m.Content {
				chars += int64(len(p.Text)) + int64(len(p.ThinkText)) + int64(len(p.URL))
			}
			for _, tc := range m.ToolCalls {
				chars += int64(len(tc.Name)) + int64(len(tc.Arguments))
			}
		}
		return chars / 4
	}

	const tokensPerMessage = 3
	var total int64
	for _, m := range messages {
		total += tokensPerMessage
		total += int64(len(enc.Encode(string(m.Role), nil, nil)))
		for _, p := range m.Content {
			total += int64(len(enc.Encode(p.Text, nil, nil)))
			total += int64(len(enc.Encode(p.ThinkText, nil, nil)))
		}
		for _, tc := range m.ToolCalls {
			total += int64(len(enc.Encode(tc.Name, nil, nil)))
			total += int64(len(enc.Encode(tc.Arguments, nil, nil)))
		}
	}
	total += 3 // every reply is primed with <|start|>assistant<|message|>
	return total
}

// ContextUsage reports the estimated fraction of MaxContextSize the
// current context consumes, for status reporting (soul/mod.rs's
// StatusSnapshot.context_usage).
func (s *Scheduler) ContextUsage() float64 {
	if s.limits.MaxContextSize <= 0 {
		return 0
	}
	return float64(countTokens(s.tokens, s.ctxStore.Messages())) / float64(s.limits.MaxContextSize)
}

// EstimateContextUsage reports the estimated fraction of
// limits.MaxContextSize that messages consumes, encoding against model
// (see encodingForModel). Exposed standalone so callers that report
// status between turns (no live Scheduler bound to a wire) don't need
// one.
func EstimateContextUsage(messages []llm.Message, model string, limits Limits) float64 {
	if limits.MaxContextSize <= 0 {
		return 0
	}
	return float64(countTokens(encodingForModel(model), messages)) / float64(limits.MaxContextSize)
}

// Run drives user input through one or more turns to completion: the
// initial turn, then any D-Mail-triggered rewind turns and any
// ralph-iteration restarts, until the scheduler reaches a normal stop.
func (s *Scheduler) Run(ctx context.Context, userInput string) error {
	defer s.cleanup()

	if err := s.limits.Validate(); err != nil {
		return err
	}

	if userInput != "" {
		s.emit(wire.TypeUserInput, wire.UserInputPayload{Text: userInput})
		if err := s.ctxStore.Append(llm.UserText(userInput)); err != nil {
			return err
		}
	}

	ralphIterations := 0
	for {
		lastAssistant, err := s.runOneTurn(ctx)
		if err != nil {
			return err
		}

		if dmail := s.dmail.FetchPendingDMail(); dmail != nil {
			ckpt := ctxstore.Checkpoint{ID: dmail.CheckpointID, Position: s.positionForCheckpoint(dmail.CheckpointID)}
			if err := s.ctxStore.RewindTo(ckpt); err != nil {
				return err
			}
			s.emit(wire.TypeUserInput, wire.UserInputPayload{Text: dmail.Message})
			if err := s.ctxStore.Append(llm.UserText(dmail.Message)); err != nil {
				return err
			}
			ralphIterations = 0
			continue
		}

		if s.limits.MaxRalphIterations > 0 && ralphIterations < s.limits.MaxRalphIterations && !calledTerminatorTool(lastAssistant, s.limits.TerminatorTools) {
			ralphIterations++
			continue
		}

		return nil
	}
}

// positionForCheckpoint resolves a D-Mail's checkpoint_id back to a
// context position. ctxstore.Context only tracks the running counter, so
// the scheduler keeps its own id->position table, filled in by
// recordCheckpoint at every StepBegin.
func (s *Scheduler) positionForCheckpoint(id int64) int {
	pos, ok := s.checkpointPositions[id]
	if !ok {
		return s.ctxStore.Len()
	}
	return pos
}

// recordCheckpoint remembers ckpt's position for a later D-Mail rewind.
func (s *Scheduler) recordCheckpoint(ckpt ctxstore.Checkpoint) {
	s.checkpointPositions[ckpt.ID] = ckpt.Position
}

func calledTerminatorTool(msg llm.Message, terminators []string) bool {
	for _, tc := range msg.ToolCalls {
		for _, name := range terminators {
			if tc.Name == name {
				return true
			}
		}
	}
	return false
}

// runOneTurn drives GENERATING -> DISPATCHING -> ... -> TURN END for a
// single turn and returns the final assistant message.
func (s *Scheduler) runOneTurn(ctx context.Context) (llm.Message, error) {
	turnID := uuid.NewString()
	s.emit(wire.TypeTurnBegin, wire.TurnBeginPayload{TurnID: turnID})

	var lastAssistant llm.Message
	for step := 0; ; step++ {
		if step >= s.limits.MaxStepsPerTurn {
			s.emit(wire.TypeStepInterrupted, wire.StepInterruptedPayload{Reason: errs.ErrMaxStepsReached.Error()})
			return lastAssistant, errs.ErrMaxStepsReached
		}
		if err := ctx.Err(); err != nil {
			return lastAssistant, errs.ErrRunCancelled
		}

		ckpt := s.ctxStore.NextCheckpoint()
		s.recordCheckpoint(ckpt)
		s.dmail.SetNCheckpoints(s.ctxStore.CheckpointCount())
		s.emit(wire.TypeStepBegin, wire.StepBeginPayload{CheckpointID: ckpt.ID})

		if err := s.maybeCompact(ctx); err != nil {
			return lastAssistant, err
		}

		assistant, err := s.generateWithRetry(ctx)
		if err != nil {
			return lastAssistant, err
		}
		lastAssistant = assistant

		if len(assistant.ToolCalls) == 0 {
			if err := s.ctxStore.Append(assistant); err != nil {
				return lastAssistant, err
			}
			s.emit(wire.TypeTurnEnd, wire.TurnEndPayload{TurnID: turnID})
			return lastAssistant, nil
		}

		for _, tc := range assistant.ToolCalls {
			s.emit(wire.TypeToolCallRequest, wire.ToolCallRequestPayload{ToolCallID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
		}

		calls := make([]toolset.ToolCall, len(assistant.ToolCalls))
		for i, tc := range assistant.ToolCalls {
			calls[i] = toolset.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments}
		}
		results := s.toolset.DispatchAll(ctx, calls, s.soul)

		if err := s.ctxStore.Append(assistant); err != nil {
			return lastAssistant, err
		}
		for _, r := range results {
			if err := s.ctxStore.Append(toolResultMessage(r)); err != nil {
				return lastAssistant, err
			}
		}

		if ctx.Err() != nil {
			return lastAssistant, errs.ErrRunCancelled
		}
	}
}

// toolResultMessage converts a dispatched tool's ReturnValue into a
// tool-role Message per SPEC_FULL.md §4.4's message-form conversion.
func toolResultMessage(r toolset.ToolResult) llm.Message {
	var text string
	switch out := r.ReturnValue.Output.(type) {
	case toolset.TextOutput:
		text = string(out)
	case toolset.PartsOutput:
		parts := []llm.Part(out)
		return llm.Message{Role: llm.RoleTool, ToolCallID: r.ToolCallID, Content: parts}
	}
	return llm.Message{Role: llm.RoleTool, ToolCallID: r.ToolCallID, Content: []llm.Part{{Kind: llm.PartText, Text: text}}}
}

// maybeCompact runs compaction if the estimated token count of the
// current context exceeds the configured threshold, per spec.md §4.10
// step 2.
func (s *Scheduler) maybeCompact(ctx context.Context) error {
	messages := s.ctxStore.Messages()
	if countTokens(s.tokens, messages) <= s.limits.MaxContextSize-s.limits.ReservedContextSize {
		return nil
	}

	s.emit(wire.TypeCompactionBegin, wire.CompactionBeginPayload{})
	out, compacted, err := s.compactor.Compact(ctx, s, messages)
	if err != nil {
		return err
	}
	if !compacted {
		return nil
	}

	cutAt := len(messages) - (len(out) - 1)
	if err := s.ctxStore.ReplacePrefix(cutAt, out[:1]); err != nil {
		return err
	}
	s.emit(wire.TypeCompactionEnd, wire.CompactionEndPayload{PreservedMessages: len(out) - 1})
	return nil
}

// Step implements compaction.Stepper: a single non-streaming-to-wire
// generation against the dedicated compaction system prompt, with no
// tools offered.
func (s *Scheduler) Step(ctx context.Context, systemPrompt string, messages []llm.Message) (llm.Message, error) {
	full := append([]llm.Message{llm.System(systemPrompt)}, messages...)
	return s.generateOnce(ctx, full, nil)
}

// generateWithRetry calls generateOnce, retrying retryable
// errs.ChatProviderErrors up to MaxRetriesPerStep times with backoff.
func (s *Scheduler) generateWithRetry(ctx context.Context) (llm.Message, error) {
	messages := append([]llm.Message{llm.System(s.systemPrompt)}, s.ctxStore.Messages()...)
	tools := s.toolset.List()

	for attempt := 0; ; attempt++ {
		msg, err := s.generateOnce(ctx, messages, tools)
		if err == nil {
			return msg, nil
		}

		var cpe *errs.ChatProviderError
		if !errors.As(err, &cpe) || !cpe.Retryable() || attempt >= s.limits.MaxRetriesPerStep {
			return llm.Message{}, err
		}

		select {
		case <-time.After(s.backoff(attempt)):
		case <-ctx.Done():
			return llm.Message{}, errs.ErrRunCancelled
		}
	}
}

// generateOnce streams one generation, forwarding content deltas to the
// wire as StatusUpdate events and assembling tool calls by id (fragments
// sharing an id are concatenated; a call whose arguments never become
// valid JSON before the stream ends is dropped as an orphan, per the open
// question in spec.md §9). An empty response (no content, no tool calls)
// is an EmptyResponse ChatProviderError.
func (s *Scheduler) generateOnce(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (llm.Message, error) {
	chunks, errCh := s.client.Stream(ctx, messages, tools)

	msg := llm.Message{Role: llm.RoleAssistant}
	type builder struct {
		name, args string
	}
	builders := make(map[string]*builder)
	var order []string

	for chunk := range chunks {
		switch chunk.Type {
		case llm.ChunkContent:
			s.emit(wire.TypeStatusUpdate, wire.StatusUpdatePayload{Status: chunk.Part.Text})
			mergeOrAppend(&msg.Content, chunk.Part)
		case llm.ChunkToolCall:
			if chunk.ToolCall == nil {
				continue
			}
			b, ok := builders[chunk.ToolCall.ID]
			if !ok {
				b = &builder{}
				builders[chunk.ToolCall.ID] = b
				order = append(order, chunk.ToolCall.ID)
			}
			b.name += chunk.ToolCall.Name
			b.args += chunk.ToolCall.Arguments
		case llm.ChunkDone:
		}
	}

	if err := <-errCh; err != nil {
		return llm.Message{}, err
	}

	for _, id := range order {
		b := builders[id]
		args := b.args
		if args == "" {
			args = "{}"
		}
		var probe json.RawMessage
		if json.Unmarshal([]byte(args), &probe) != nil || b.name == "" {
			continue // orphaned partial call, dropped per spec.md §9
		}
		msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{ID: id, Name: b.name, Arguments: args})
	}

	if len(msg.Content) == 0 && len(msg.ToolCalls) == 0 {
		return llm.Message{}, &errs.ChatProviderError{Kind: errs.KindEmptyResponse, Err: fmt.Errorf("empty response")}
	}

	return msg, nil
}

func mergeOrAppend(content *[]llm.Part, part llm.Part) {
	if n := len(*content); n > 0 && (*content)[n-1].MergeInPlace(part) {
		return
	}
	*content = append(*content, part)
}

func (s *Scheduler) emit(t wire.Type, payload any) {
	if s.soul == nil {
		return
	}
	msg, err := wire.NewMessage(t, payload)
	if err != nil {
		return
	}
	_ = s.soul.Send(msg)
}

// cleanup runs the deferred shutdown chain on every exit path from Run:
// join the wire's in-flight sends, then shut it down. Grounded on
// pkg/runner/runner.go's clearTempState -> indexSession ->
// checkAndSummarize deferred chain, and on soul/mod.rs's run_soul, which
// constructs a fresh Wire per run and tears it down (wire.shutdown() +
// wire.join()) once that run's soul_future resolves.
//
// The approval coordinator is not touched here: its yolo flag and
// session allowlist must survive across turns within one soul, so it is
// owned and shut down at the soul level, not per-run. Cancellation's
// "wake any approval waiter with Reject" requirement is already met by
// Approval.Request's own ctx.Done() branch.
func (s *Scheduler) cleanup() {
	if s.soul == nil {
		return
	}
	_ = s.soul.Join(context.Background())
	s.soul.Shutdown()
}
