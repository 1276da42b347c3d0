package wire

import (
	"context"
	"sync"

	"github.com/kagent-go/kagent/internal/queue"
)

// Wire is a single per-run object with two sides: the soul side (agent
// writes) and the UI side (client reads), plus a broadcast fan-out for
// additional subscribers and an optional durable journal. Ordering is
// per-side FIFO; between correlated request/response pairs delivery is
// in-order within one side.
type Wire struct {
	broadcast *queue.BroadcastQueue[Message]
	journal   *File

	mu       sync.Mutex
	pending  int
	done     chan struct{}
	doneOnce sync.Once
}

// New creates a Wire, optionally backed by a durable journal (pass nil to
// run without one, e.g. in subagent contexts that don't persist).
func New(journal *File) *Wire {
	return &Wire{
		broadcast: queue.NewBroadcast[Message](),
		journal:   journal,
		done:      make(chan struct{}),
	}
}

// SoulSide is the agent-facing handle: send-only plus shutdown/join.
type SoulSide struct{ w *Wire }

// UISide is the client-facing handle: receive-only, backed by its own
// broadcast subscription.
type UISide struct {
	w *Wire
	q *queue.Queue[Message]
}

// SoulSide returns the agent-facing handle.
func (w *Wire) SoulSide() *SoulSide { return &SoulSide{w: w} }

// UISide subscribes a new client and returns its receive handle.
func (w *Wire) UISide() *UISide {
	return &UISide{w: w, q: w.broadcast.Subscribe()}
}

// Send enqueues msg towards every UI subscriber and appends it to the
// durable journal, if any. Non-blocking.
func (s *SoulSide) Send(msg Message) error {
	s.w.mu.Lock()
	s.w.pending++
	s.w.mu.Unlock()

	s.w.broadcast.Publish(msg)

	if s.w.journal != nil {
		if err := s.w.journal.AppendMessage(msg); err != nil {
			return err
		}
	}

	s.w.mu.Lock()
	s.w.pending--
	if s.w.pending == 0 {
		select {
		case s.w.done <- struct{}{}:
		default:
		}
	}
	s.w.mu.Unlock()
	return nil
}

// Shutdown closes both sides. Pending items already published to
// subscribers are not discarded; this only stops further delivery.
func (s *SoulSide) Shutdown() {
	s.w.broadcast.Shutdown(false)
}

// Join completes when all pending Send calls have flushed.
func (s *SoulSide) Join(ctx context.Context) error {
	s.w.mu.Lock()
	if s.w.pending == 0 {
		s.w.mu.Unlock()
		return nil
	}
	s.w.mu.Unlock()

	select {
	case <-s.w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive awaits the next message for this UI subscriber, or returns
// queue.ErrShutDown once the wire has been shut down and drained.
func (u *UISide) Receive(ctx context.Context) (Message, error) {
	return u.q.Get(ctx)
}

// Close unsubscribes this UI side from the broadcast fan-out.
func (u *UISide) Close() {
	u.w.broadcast.Unsubscribe(u.q)
}
