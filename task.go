package taskgrid

import (
	"context"
	"sync"
)

// Task is a result-bearing node. The callable's return value lands in the
// task's result slot, readable with Value after the run and fanned out to
// any consumers registered with Subscribe.
type Task[T any] struct {
	nodeCore
	fn func(ctx context.Context) (T, error)

	resMu     sync.Mutex
	result    *T
	consumers []func(T)
	once      bool
}

// Once marks the task's result as single-delivery: the value is handed to
// at most one consumer (or one Value call) and the slot is cleared on
// delivery, never duplicated. Returns the task for chaining. Must be set
// before the graph runs.
func (t *Task[T]) Once() *Task[T] {
	t.resMu.Lock()
	t.once = true
	t.resMu.Unlock()
	return t
}

// Subscribe registers a consumer that receives the task's value when it
// completes successfully. Consumers run on the worker executing the task,
// in registration order. On a single-delivery task a second registration
// fails with ErrTooManyConsumers and registers nothing.
func (t *Task[T]) Subscribe(fn func(T)) error {
	t.resMu.Lock()
	defer t.resMu.Unlock()
	if t.once && len(t.consumers) > 0 {
		return ErrTooManyConsumers
	}
	t.consumers = append(t.consumers, fn)
	return nil
}

// Value returns the result stored by the last run. It fails with
// ErrNoResult if no result is available — before the first run, after
// Reset, or once a single-delivery value has been consumed — and with the
// task's own error if the run failed. Reading a single-delivery value
// consumes it.
func (t *Task[T]) Value() (T, error) {
	var zero T
	if err := t.Err(); err != nil {
		return zero, err
	}

	t.resMu.Lock()
	defer t.resMu.Unlock()
	if t.result == nil {
		return zero, ErrNoResult
	}

	v := *t.result
	if t.once {
		t.result = nil
	}
	return v, nil
}

func (t *Task[T]) invoke(ctx context.Context) error {
	v, err := t.fn(ctx)
	if err != nil {
		return err
	}

	t.resMu.Lock()
	consumers := t.consumers
	if t.once && len(consumers) > 0 {
		// Ownership moves to the consumer; nothing left to read later.
		t.result = nil
	} else {
		t.result = &v
	}
	t.resMu.Unlock()

	for _, deliver := range consumers {
		deliver(v)
	}
	return nil
}

func (t *Task[T]) resetNode() {
	t.resetCore()
	t.resMu.Lock()
	t.result = nil
	t.resMu.Unlock()
}

// Action is a void node: a callable run purely for its side effects. It
// has no result slot, so it never participates in value fan-out.
type Action struct {
	nodeCore
	fn func(ctx context.Context) error
}

func (a *Action) invoke(ctx context.Context) error { return a.fn(ctx) }

func (a *Action) resetNode() { a.resetCore() }
