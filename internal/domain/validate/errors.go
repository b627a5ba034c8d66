package validate

import "errors"

// Sentinel kinds for validation errors.
var (
	// ErrNothingToValidate indicates the snapshot holds no scored data at
	// all; this is the pipeline's only hard precondition.
	ErrNothingToValidate = errors.New("nothing to validate")
)
