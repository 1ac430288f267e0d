package pool

import "context"

// Future is the handle returned by Submit. It completes exactly once, with
// either the submitted function's result or its error.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// complete resolves the future with a value. Must be called at most once,
// and never after fail.
func (f *Future[T]) complete(v T) {
	f.val = v
	close(f.done)
}

// fail resolves the future with an error.
func (f *Future[T]) fail(err error) {
	f.err = err
	close(f.done)
}

// Done returns a channel that is closed once the future has completed.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get blocks until the future completes or ctx is canceled, then returns
// the result. A canceled wait returns the context's error; the underlying
// task keeps running.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Wait blocks like Get but discards the value.
func (f *Future[T]) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
