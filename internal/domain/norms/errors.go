package norms

import "errors"

// Sentinel kinds for normative lookup errors.
var (
	// ErrNormativeLookupExhausted indicates that no tier in the candidate
	// chain had table data for the requested scale.
	ErrNormativeLookupExhausted = errors.New("normative lookup exhausted")
)
