package storage

import "errors"

var (
	// ErrNotFound is returned when no content exists for an id.
	ErrNotFound = errors.New("content not found")
	// ErrUnavailable wraps faults talking to the storage backend.
	ErrUnavailable = errors.New("content storage unavailable")
)
