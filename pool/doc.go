// Package pool implements a resizable worker pool over a shared FIFO queue.
//
// Each worker loops popping and running queued thunks, blocking on a wait
// condition while idle. Submissions return a Future for eventual result or
// error retrieval; a panic inside a submitted function is captured by its
// future and never kills the worker.
//
// The pool supports two shutdown modes: a drain stop runs every
// already-enqueued thunk before the workers exit, an abrupt stop discards
// unexecuted thunks and fails their futures. Shrinking the pool flags the
// excess workers to exit after their current thunk; every spawned worker is
// tracked and joined at Stop regardless of grow/shrink history.
package pool
