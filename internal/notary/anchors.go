package notary

import (
	"context"
	"errors"

	"arkv/internal/anchoring"
	"arkv/internal/index"
	"arkv/pkg/platform/audit"
)

// ConfirmAnchor records that a ledger transaction was included and attaches
// the confirmed anchor to its notarization.
func (s *Service) ConfirmAnchor(ctx context.Context, txID string) error {
	ctx, span := tracer.Start(ctx, "notary.ConfirmAnchor")
	defer span.End()

	tx, err := s.anchorer.Confirm(ctx, txID)
	if err != nil {
		span.RecordError(err)
		return translate(err)
	}
	if err := s.attach(ctx, tx); err != nil {
		return err
	}
	s.emit(ctx, audit.EventAnchorConfirmed, audit.Event{
		Subject:       tx.Fingerprint.String(),
		TransactionID: tx.TransactionID,
	})
	return nil
}

// FailAnchor records that a ledger transaction reverted or expired. The
// fingerprint may be anchored again afterwards.
func (s *Service) FailAnchor(ctx context.Context, txID, reason string) error {
	ctx, span := tracer.Start(ctx, "notary.FailAnchor")
	defer span.End()

	tx, err := s.anchorer.Fail(ctx, txID, reason)
	if err != nil {
		span.RecordError(err)
		return translate(err)
	}
	if err := s.attach(ctx, tx); err != nil {
		return err
	}
	s.emit(ctx, audit.EventAnchorFailed, audit.Event{
		Subject:       tx.Fingerprint.String(),
		TransactionID: tx.TransactionID,
		Reason:        reason,
	})
	return nil
}

// attach copies the resolved anchor onto the index record. A missing record
// is logged and skipped. Other failures are returned; resolving again is a
// no-op in the coordinator, so the caller may retry.
func (s *Service) attach(ctx context.Context, tx *anchoring.Transaction) error {
	_, err := s.index.Update(ctx, tx.Fingerprint, index.Patch{Anchor: tx})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, index.ErrNotFound):
		s.logger.WarnContext(ctx, "resolved anchor has no notarization record",
			"fingerprint", tx.Fingerprint,
			"tx_id", tx.TransactionID,
			"status", tx.Status,
		)
		return nil
	default:
		s.logger.ErrorContext(ctx, "failed to record anchor resolution",
			"fingerprint", tx.Fingerprint,
			"tx_id", tx.TransactionID,
			"error", err,
		)
		return translate(err)
	}
}
