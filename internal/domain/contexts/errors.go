package contexts

import "errors"

// Sentinel kinds for context aggregation errors.
var (
	// ErrUnknownContext indicates a response named a context outside the
	// closed catalog of eight.
	ErrUnknownContext = errors.New("unknown context")
)
