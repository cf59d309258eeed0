package textvec

import "errors"

// Sentinel kinds for vector space errors.
var (
	// ErrConfiguration reports a corpus that cannot produce a usable space.
	ErrConfiguration = errors.New("vector space configuration error")
)
