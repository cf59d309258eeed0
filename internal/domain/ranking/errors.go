package ranking

import "errors"

// Sentinel kinds for ranking errors.
var (
	ErrDuplicateCandidate = errors.New("duplicate candidate id")
	ErrNoSpace            = errors.New("ranker has no vector space")
)
