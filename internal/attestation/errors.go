package attestation

import (
	"errors"
	"fmt"

	id "arkv/pkg/domain"
)

var (
	// ErrUnavailable matches every UnavailableError: the check could not be
	// performed, as opposed to a check that found no matching record.
	ErrUnavailable = errors.New("attestation unavailable")

	// ErrNameNotFound is returned by resolvers for NXDOMAIN. The checker treats
	// it as an empty answer set.
	ErrNameNotFound = errors.New("dns name not found")
)

// UnavailableError reports that the resolver could not answer within the
// retry and time budget.
type UnavailableError struct {
	Domain   id.DomainName
	Attempts int
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("attestation unavailable for %s after %d attempt(s): %v", e.Domain, e.Attempts, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}
