package notify

import "errors"

// Sentinel kinds for notification errors.
var (
	ErrInvalidRecipient = errors.New("invalid recipient")
	ErrCircuitOpen      = errors.New("notification circuit open")
	ErrNotConfigured    = errors.New("notifier not configured")
)
