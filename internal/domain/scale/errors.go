package scale

import "errors"

// Sentinel kinds for scale scoring errors.
var (
	// ErrIncompleteResponseSet indicates that at least one basic mode has
	// no item responses; scoring never imputes missing values.
	ErrIncompleteResponseSet = errors.New("incomplete response set")
)
