package style

import "errors"

// Sentinel kinds for classification errors.
var (
	ErrIncompleteGrid = errors.New("style grid is not total")
	ErrUnknownStyle   = errors.New("style label not in canonical catalog")
)
