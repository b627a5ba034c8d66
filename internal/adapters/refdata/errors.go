package refdata

import "errors"

// Sentinel kinds for catalog loading errors.
var (
	ErrCatalogUnreadable = errors.New("reference catalog unreadable")
	ErrCatalogInvalid    = errors.New("reference catalog invalid")
)
