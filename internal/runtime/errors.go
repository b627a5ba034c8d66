package runtime

import "errors"

// Sentinel kinds for runtime errors.
var (
	// ErrUnknownInstrument indicates no strategy is registered for the
	// session's instrument key.
	ErrUnknownInstrument = errors.New("unknown instrument strategy")
)
