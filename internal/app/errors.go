package service

import "errors"

// Sentinel kinds for service errors.
var (
	// ErrNotReady is returned before a vector space has been built.
	ErrNotReady = errors.New("service not ready")
	// ErrNotStarted is returned when delivery is requested before Start.
	ErrNotStarted = errors.New("service not started")
	// ErrInvalidEvent reports a submitted event with no usable name.
	ErrInvalidEvent = errors.New("invalid event")
)
