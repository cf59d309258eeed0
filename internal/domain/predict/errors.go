package predict

import (
	"errors"
	"fmt"
)

// Sentinel kinds for prediction errors. ErrEmptyAlphabet, ErrMissingSeed and
// ErrSeedNotInAlphabet wrap ErrDomain so callers can match the whole class.
var (
	ErrDomain            = errors.New("domain error")
	ErrEmptyAlphabet     = fmt.Errorf("%w: empty interest alphabet", ErrDomain)
	ErrMissingSeed       = fmt.Errorf("%w: no current interest to seed from", ErrDomain)
	ErrSeedNotInAlphabet = fmt.Errorf("%w: seed is not in the interest alphabet", ErrDomain)
	ErrNoSource          = errors.New("no random source")
)
