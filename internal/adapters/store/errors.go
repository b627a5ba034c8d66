package store

import "errors"

// Sentinel kinds for store errors.
var (
	ErrOpenDatabase    = errors.New("open database failed")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionLocked   = errors.New("session is locked by another scorer")
)
