package notary

import (
	"context"
	"errors"

	"arkv/internal/anchoring"
	"arkv/internal/artifact"
	"arkv/internal/attestation"
	"arkv/internal/index"
	"arkv/internal/storage"
	dErrors "arkv/pkg/domain-errors"
)

var (
	ErrProviderUnavailable = errors.New("signing provider unavailable")
	ErrWrongNetwork        = errors.New("signing provider is on the wrong network")
)

// ProviderError rejects a workflow while the signing provider is unavailable.
// It matches ErrProviderUnavailable, and ErrWrongNetwork when the node reported
// an unexpected chain tag.
type ProviderError struct {
	Reason       string
	WrongNetwork bool
}

func (e *ProviderError) Error() string {
	if e.Reason == "" {
		return ErrProviderUnavailable.Error()
	}
	return ErrProviderUnavailable.Error() + ": " + e.Reason
}

func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderUnavailable || (e.WrongNetwork && target == ErrWrongNetwork)
}

// translate attaches a domain-error code to a collaborator fault so the
// transport layer can map it. The original error stays in the chain.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "request cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "request timed out")
	case errors.Is(err, ErrWrongNetwork):
		return dErrors.Wrap(err, dErrors.CodePreconditionFailed, "signing provider is connected to the wrong network")
	case errors.Is(err, ErrProviderUnavailable):
		return dErrors.Wrap(err, dErrors.CodePreconditionFailed, "signing provider unavailable")
	case errors.Is(err, artifact.ErrEncoding):
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, err.Error())
	case errors.Is(err, anchoring.ErrAlreadyPending):
		return dErrors.Wrap(err, dErrors.CodeConflict, "fingerprint already has a pending anchor")
	case errors.Is(err, anchoring.ErrAlreadyConfirmed):
		return dErrors.Wrap(err, dErrors.CodeConflict, "fingerprint is already anchored")
	case errors.Is(err, anchoring.ErrUserDeclined):
		return dErrors.Wrap(err, dErrors.CodeForbidden, "signer declined the transaction")
	case errors.Is(err, anchoring.ErrInsufficientFunds):
		return dErrors.Wrap(err, dErrors.CodePaymentRequired, "insufficient funds for the transaction")
	case errors.Is(err, anchoring.ErrSubmissionFailed):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "transaction submission failed")
	case errors.Is(err, anchoring.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "anchor transaction not found")
	case errors.Is(err, anchoring.ErrInvalidTransition):
		return dErrors.Wrap(err, dErrors.CodeConflict, "anchor transaction already resolved")
	case errors.Is(err, attestation.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "DNS attestation unavailable")
	case errors.Is(err, index.ErrDuplicateFingerprint):
		return dErrors.Wrap(err, dErrors.CodeConflict, "fingerprint already notarized")
	case errors.Is(err, index.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "notarization not found")
	case errors.Is(err, storage.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "content not found")
	case errors.Is(err, storage.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "content storage unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}
}
