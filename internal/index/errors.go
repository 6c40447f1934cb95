package index

import "errors"

var (
	ErrDuplicateFingerprint = errors.New("duplicate fingerprint")
	ErrNotFound             = errors.New("notarization not found")
)
