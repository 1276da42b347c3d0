// Package queue implements unbounded async FIFO queues with cooperative
// shutdown, used by the wire and by the approval coordinator's pending
// request channel.
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrShutDown is returned by Put/Get once a Queue has been shut down and,
// for Get, once all items buffered before shutdown have been drained.
var ErrShutDown = errors.New("queue: shut down")

// Queue is an unbounded, logically single-producer/single-consumer FIFO.
// Multiple producers may call Put concurrently; Get is safe to call from
// multiple goroutines but items are handed out to exactly one caller each.
type Queue[T any] struct {
	mu       sync.Mutex
	items    []T
	notEmpty chan struct{}
	shutdown atomic.Bool
}

// New creates an empty, open Queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{notEmpty: make(chan struct{}, 1)}
}

// Put enqueues an item. Returns ErrShutDown if the queue has already been
// shut down; the item is discarded in that case.
func (q *Queue[T]) Put(item T) error {
	if q.shutdown.Load() {
		return ErrShutDown
	}
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	select {
	case q.notEmpty <- struct{}{}:
	default:
	}
	return nil
}

// Get blocks until an item is available, ctx is done, or the queue is shut
// down and drained.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	var zero T
	for {
		if item, ok := q.tryPop(); ok {
			return item, nil
		}
		if q.shutdown.Load() {
			return zero, ErrShutDown
		}
		select {
		case <-q.notEmpty:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// GetNowait returns an item without blocking, or false if none is ready.
func (q *Queue[T]) GetNowait() (T, bool) {
	return q.tryPop()
}

func (q *Queue[T]) tryPop() (T, bool) {
	var zero T
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

// Shutdown idempotently closes the queue. If immediate is true, any
// buffered items are discarded; otherwise callers may continue to drain
// the queue with Get/GetNowait until it is empty.
func (q *Queue[T]) Shutdown(immediate bool) {
	if q.shutdown.Swap(true) {
		return
	}
	if immediate {
		q.mu.Lock()
		q.items = nil
		q.mu.Unlock()
	}
	select {
	case q.notEmpty <- struct{}{}:
	default:
	}
}

// Len reports the number of buffered items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
