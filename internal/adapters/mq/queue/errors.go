package queue

import "errors"

// Sentinel kinds for queue errors. Enqueue reports a bool; callers that need
// a reason pick one of these from IsClosed.
var (
	ErrClosed = errors.New("queue closed")
	ErrFull   = errors.New("queue full")
)
