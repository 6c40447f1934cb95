package artifact

import (
	"errors"
	"fmt"
)

// ErrEncoding is the sentinel every EncodingError matches with errors.Is.
var ErrEncoding = errors.New("encoding error")

// EncodingError reports a record that cannot be canonicalised: a missing
// required field, an ambiguous payload, or an unreadable payload.
type EncodingError struct {
	Field  string
	Reason string
	Err    error
}

func (e *EncodingError) Error() string {
	msg := "encoding error"
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

func (e *EncodingError) Is(target error) bool {
	return target == ErrEncoding
}

func encodingError(field, reason string) error {
	return &EncodingError{Field: field, Reason: reason}
}
