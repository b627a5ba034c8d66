package flex

import "errors"

// Sentinel kinds for flexibility computation errors.
var (
	// ErrIncompleteContextSet indicates the session does not have a score
	// for every canonical context.
	ErrIncompleteContextSet = errors.New("incomplete context score set")
)
