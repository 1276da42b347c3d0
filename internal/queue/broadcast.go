package queue

import "sync"

// BroadcastQueue fans a published item out to every currently subscribed
// Queue. Subscribers are removed by pointer identity, not value equality,
// mirroring the original implementation's ptr_eq unsubscribe.
type BroadcastQueue[T any] struct {
	mu   sync.Mutex
	subs []*Queue[T]
}

// NewBroadcast creates an empty BroadcastQueue.
func NewBroadcast[T any]() *BroadcastQueue[T] {
	return &BroadcastQueue[T]{}
}

// Subscribe registers a new subscriber queue and returns it.
func (b *BroadcastQueue[T]) Subscribe() *Queue[T] {
	q := New[T]()
	b.mu.Lock()
	b.subs = append(b.subs, q)
	b.mu.Unlock()
	return q
}

// Unsubscribe removes q by pointer identity. No-op if q is not subscribed.
func (b *BroadcastQueue[T]) Unsubscribe(q *Queue[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == q {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish hands item to every subscriber current at the time of the call.
// New subscriptions racing with Publish never observe a partially-delivered
// item: the subscriber list is snapshotted under lock before delivery.
func (b *BroadcastQueue[T]) Publish(item T) {
	b.mu.Lock()
	subs := make([]*Queue[T], len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		_ = s.Put(item)
	}
}

// Shutdown shuts down every current subscriber queue.
func (b *BroadcastQueue[T]) Shutdown(immediate bool) {
	b.mu.Lock()
	subs := make([]*Queue[T], len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		s.Shutdown(immediate)
	}
}
