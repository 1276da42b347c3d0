// Package approval implements the approval coordinator gating
// side-effecting tool calls behind user confirmation. Grounded
// authoritatively on soul/approval.rs from the original implementation.
package approval

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/kagent-go/kagent/internal/errs"
	"github.com/kagent-go/kagent/internal/queue"
	"github.com/kagent-go/kagent/internal/wire"
)

// state is the part shared between an Approval and its siblings created
// via Share: the yolo flag and the session allowlist.
type state struct {
	yolo        atomic.Bool
	mu          sync.Mutex
	autoApprove map[string]struct{}
}

func newState() *state {
	return &state{autoApprove: make(map[string]struct{})}
}

func (s *state) allowed(action string) bool {
	if s.yolo.Load() {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.autoApprove[action]
	return ok
}

func (s *state) allow(action string) {
	s.mu.Lock()
	s.autoApprove[action] = struct{}{}
	s.mu.Unlock()
}

// Approval is the per-run (or per-subagent, via Share) coordinator.
type Approval struct {
	state    *state
	pending  *queue.Queue[wire.ApprovalRequestPayload]
	waitersM sync.Mutex
	waiters  map[string]chan wire.ApprovalResponseKind
}

// New creates a fresh Approval with its own state.
func New() *Approval {
	return &Approval{
		state:   newState(),
		pending: queue.New[wire.ApprovalRequestPayload](),
		waiters: make(map[string]chan wire.ApprovalResponseKind),
	}
}

// SetYOLO sets the global bypass flag.
func (a *Approval) SetYOLO(v bool) { a.state.yolo.Store(v) }

// YOLO reports the current bypass flag.
func (a *Approval) YOLO() bool { return a.state.yolo.Load() }

// AutoApproved reports whether action is in the session allowlist.
func (a *Approval) AutoApproved(action string) bool { return a.state.allowed(action) }

// Request implements the five-step contract from the specification. The
// caller must supply the active tool-call id (callers normally obtain it
// via the toolset package's CurrentToolCall accessor); an empty id means
// "not within a tool-call context" and fails with ApprovalNoToolCall.
func (a *Approval) Request(ctx context.Context, soul *wire.SoulSide, toolCallID, sender, action, description string, display []string) (bool, error) {
	if toolCallID == "" {
		return false, &errs.ApprovalError{Kind: errs.ApprovalNoToolCall}
	}

	if a.state.allowed(action) {
		return true, nil
	}

	id := uuid.NewString()
	req := wire.ApprovalRequestPayload{
		ID:          id,
		ToolCallID:  toolCallID,
		Sender:      sender,
		Action:      action,
		Description: description,
		Display:     display,
	}

	wait := make(chan wire.ApprovalResponseKind, 1)
	a.waitersM.Lock()
	a.waiters[id] = wait
	a.waitersM.Unlock()

	if err := a.pending.Put(req); err != nil {
		a.waitersM.Lock()
		delete(a.waiters, id)
		a.waitersM.Unlock()
		return false, &errs.ApprovalError{Kind: errs.ApprovalQueueShutDown}
	}

	if soul != nil {
		msg, err := wire.NewMessage(wire.TypeApprovalRequest, req)
		if err == nil {
			_ = soul.Send(msg)
		}
	}

	select {
	case resp, ok := <-wait:
		if !ok {
			return false, &errs.ApprovalError{Kind: errs.ApprovalQueueShutDown}
		}
		if resp == wire.ApproveForSession {
			a.state.allow(action)
		}
		return resp == wire.Approve || resp == wire.ApproveForSession, nil
	case <-ctx.Done():
		a.waitersM.Lock()
		delete(a.waiters, id)
		a.waitersM.Unlock()
		return false, ctx.Err()
	}
}

// ResolveRequest completes the waiter registered for id. ApproveForSession
// additionally adds action to the allowlist (the caller must pass the same
// action the request was made with; FetchRequest and Request already know
// it, so UI-driven callers should resolve using the id returned by
// FetchRequest's payload).
func (a *Approval) ResolveRequest(id string, response wire.ApprovalResponseKind) error {
	a.waitersM.Lock()
	wait, ok := a.waiters[id]
	if ok {
		delete(a.waiters, id)
	}
	a.waitersM.Unlock()

	if !ok {
		return &errs.ApprovalError{Kind: errs.ApprovalRequestNotFound}
	}
	wait <- response
	close(wait)
	return nil
}

// FetchRequest pops the next pending request. If its action has meanwhile
// been added to the allowlist (a race with ApproveForSession on another
// request for the same action), it auto-resolves as approved and moves on
// to the next pending request.
func (a *Approval) FetchRequest(ctx context.Context) (wire.ApprovalRequestPayload, error) {
	for {
		req, err := a.pending.Get(ctx)
		if err != nil {
			return wire.ApprovalRequestPayload{}, err
		}
		if a.state.allowed(req.Action) {
			_ = a.ResolveRequest(req.ID, wire.Approve)
			continue
		}
		return req, nil
	}
}

// Share produces a sibling Approval with the same yolo/allowlist state but
// an independent pending queue and waiter map, for cloning approval
// handles to subagents.
func (a *Approval) Share() *Approval {
	return &Approval{
		state:   a.state,
		pending: queue.New[wire.ApprovalRequestPayload](),
		waiters: make(map[string]chan wire.ApprovalResponseKind),
	}
}

// Shutdown closes the pending queue and fails any outstanding waiters,
// mapping mid-request shutdown to QueueShutDown as the specification
// requires.
func (a *Approval) Shutdown() {
	a.pending.Shutdown(false)
	a.waitersM.Lock()
	defer a.waitersM.Unlock()
	for id, w := range a.waiters {
		close(w)
		delete(a.waiters, id)
	}
}
