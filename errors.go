package taskgrid

import "errors"

var (
	// ErrNoResult is returned by Value when the node has not produced a
	// result: before the first run, after Reset, after a single-delivery
	// value has been consumed, or for void tasks.
	ErrNoResult = errors.New("taskgrid: node has no result")

	// ErrTooManyConsumers is returned by Subscribe when a second consumer
	// is registered on a single-delivery task. The value can be handed to
	// exactly one consumer; it is never duplicated or silently dropped.
	ErrTooManyConsumers = errors.New("taskgrid: single-delivery result already has a consumer")
)
