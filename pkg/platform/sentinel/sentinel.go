package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and adapters return these
// (optionally wrapped) and the owning service translates them into its own
// typed errors or domain-error codes.
//
//   - ErrNotFound: the keyed entity does not exist in the store
//   - ErrConflict: a write collided with an existing key
//   - ErrInvalidState: the entity is in the wrong state for the requested transition
//   - ErrUnavailable: the backing service could not be reached
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
