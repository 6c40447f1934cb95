package anchoring

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyPending    = errors.New("anchor already pending")
	ErrAlreadyConfirmed  = errors.New("anchor already confirmed")
	ErrUserDeclined      = errors.New("user declined")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSubmissionFailed  = errors.New("submission failed")
	ErrNotFound          = errors.New("anchor not found")
	ErrInvalidTransition = errors.New("invalid anchor transition")
)

// ConflictError rejects an anchor for a fingerprint that already has an
// active transaction. It matches ErrAlreadyConfirmed when the existing
// transaction is confirmed and ErrAlreadyPending otherwise.
type ConflictError struct {
	Existing *Transaction
}

func (e *ConflictError) Error() string {
	if e.Existing == nil {
		return ErrAlreadyPending.Error()
	}
	if e.Existing.TransactionID == "" {
		return fmt.Sprintf("%s for %s", e.kind(), e.Existing.Fingerprint)
	}
	return fmt.Sprintf("%s for %s (tx %s)", e.kind(), e.Existing.Fingerprint, e.Existing.TransactionID)
}

func (e *ConflictError) Is(target error) bool {
	return target == e.kind()
}

func (e *ConflictError) kind() error {
	if e.Existing != nil && e.Existing.Status == StatusConfirmed {
		return ErrAlreadyConfirmed
	}
	return ErrAlreadyPending
}

// SignerError is a rejection from the signing collaborator. Kind is one of
// ErrUserDeclined, ErrInsufficientFunds or ErrSubmissionFailed.
type SignerError struct {
	Kind   error
	Reason string
	Err    error
}

func (e *SignerError) Error() string {
	msg := e.Kind.Error()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SignerError) Unwrap() error {
	return e.Err
}

func (e *SignerError) Is(target error) bool {
	return target == e.Kind
}

// Declined reports that the signer refused to sign.
func Declined(reason string) error {
	return &SignerError{Kind: ErrUserDeclined, Reason: reason}
}

// InsufficientFunds reports that the ledger rejected the transaction for lack
// of balance or energy.
func InsufficientFunds(reason string, err error) error {
	return &SignerError{Kind: ErrInsufficientFunds, Reason: reason, Err: err}
}

// SubmissionFailed reports any other signing or submission fault.
func SubmissionFailed(reason string, err error) error {
	return &SignerError{Kind: ErrSubmissionFailed, Reason: reason, Err: err}
}

// classify normalizes a signer error into a SignerError.
func classify(err error) *SignerError {
	var se *SignerError
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, ErrUserDeclined):
		return &SignerError{Kind: ErrUserDeclined, Err: err}
	case errors.Is(err, ErrInsufficientFunds):
		return &SignerError{Kind: ErrInsufficientFunds, Err: err}
	}
	return &SignerError{Kind: ErrSubmissionFailed, Err: err}
}

// outcome is the metrics label for a signer error kind.
func outcome(kind error) string {
	switch kind {
	case ErrUserDeclined:
		return "user_declined"
	case ErrInsufficientFunds:
		return "insufficient_funds"
	default:
		return "submission_failed"
	}
}
