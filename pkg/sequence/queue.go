// Package sequence holds small generic containers shared by the transports.
package sequence

import "sync"

// Queue is a FIFO safe for concurrent producers, optionally bounded.
// Consumers take everything at once with Drain, which preserves insertion
// order.
type Queue[T any] struct {
	mu        sync.Mutex
	items     []T
	limit     int
	lost      uint64
	evictable func(T) bool
}

type QueueOption[T any] func(*Queue[T])

// WithEvictable marks items that may be sacrificed when the queue is full.
// An incoming evictable item is dropped; an incoming item that is not
// evictable replaces the newest buffered evictable item, if there is one.
func WithEvictable[T any](fn func(T) bool) QueueOption[T] {
	return func(q *Queue[T]) { q.evictable = fn }
}

// NewQueue creates a queue. A positive limit caps the number of buffered
// items; once full, items are discarded and counted by Dropped. Without
// WithEvictable the newest items are the ones discarded.
func NewQueue[T any](limit int, opts ...QueueOption[T]) *Queue[T] {
	q := &Queue[T]{limit: limit}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Push appends values in order. It reports false if any item was discarded
// because the queue was full.
func (q *Queue[T]) Push(values ...T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.limit <= 0 {
		q.items = append(q.items, values...)
		return true
	}

	before := q.lost
	for _, v := range values {
		switch {
		case len(q.items) < q.limit:
			q.items = append(q.items, v)
		case q.evictable == nil || q.evictable(v):
			q.lost++
		default:
			if i := q.lastEvictable(); i >= 0 {
				q.items = append(q.items[:i], q.items[i+1:]...)
				q.items = append(q.items, v)
			}
			q.lost++
		}
	}
	return q.lost == before
}

func (q *Queue[T]) lastEvictable() int {
	for i := len(q.items) - 1; i >= 0; i-- {
		if q.evictable(q.items[i]) {
			return i
		}
	}
	return -1
}

// Drain removes and returns all buffered items, oldest first. It returns
// nil when the queue is empty.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	return out
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns how many items were discarded because of the limit.
func (q *Queue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lost
}
