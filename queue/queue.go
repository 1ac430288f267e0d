// Package queue provides a thread-safe, unbounded FIFO queue. It is the
// single hand-off point between task submitters and pool workers: every
// operation serializes on one mutex, there is no priority and no peek.
package queue

import "sync"

// Queue is a mutex-guarded FIFO of values of type T. The zero value is not
// usable; create instances with New.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

// New creates and returns an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends v to the back of the queue. The queue is unbounded, so Push
// always succeeds.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, v)
}

// Pop removes and returns the front element. The second return value is
// false if the queue was empty; Pop never blocks.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return v, true
}

// Empty reports whether the queue currently holds no elements. The answer
// is a hint only: another goroutine may push or pop immediately after.
func (q *Queue[T]) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// Len returns the current number of queued elements. Like Empty, the value
// is stale the moment it is returned.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
