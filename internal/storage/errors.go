package storage

import "errors"

var (
	// ErrNotFound is returned when a webinar id was never issued.
	ErrNotFound = errors.New("storage: not found")
	// ErrDuplicateKey is returned when a name already has a stored inflection.
	ErrDuplicateKey = errors.New("storage: duplicate key")
)
