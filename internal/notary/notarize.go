package notary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"arkv/internal/anchoring"
	"arkv/internal/artifact"
	"arkv/internal/attestation"
	"arkv/internal/index"
	id "arkv/pkg/domain"
	dErrors "arkv/pkg/domain-errors"
	"arkv/pkg/platform/audit"
	"arkv/pkg/requestcontext"
)

// NotarizeFile fingerprints a file with its metadata, optionally stores the
// payload, anchors the fingerprint and indexes the record. Nothing is indexed
// unless the anchor was submitted.
func (s *Service) NotarizeFile(ctx context.Context, req FileRequest) (result *Result, err error) {
	ctx, span := tracer.Start(ctx, "notary.NotarizeFile")
	defer span.End()
	start := time.Now()
	defer func() { err = s.finish(span, "file", start, err) }()

	provider, err := s.requireProvider()
	if err != nil {
		return nil, err
	}

	result = &Result{}
	result.step(StepHashing)
	fp, err := artifact.FingerprintRecord(artifact.NewFileRecord(req.File, req.Metadata))
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("fingerprint", fp.String()))
	if err := s.requireUnanchored(ctx, provider, fp); err != nil {
		return nil, err
	}

	var contentID string
	if req.Store {
		if s.content == nil {
			return nil, dErrors.New(dErrors.CodePreconditionFailed, "content storage is not configured")
		}
		result.step(StepStoring)
		contentID, err = s.content.Put(ctx, req.File, req.Metadata)
		if err != nil {
			return nil, fmt.Errorf("store content: %w", err)
		}
	}

	tx, err := s.anchor(ctx, result, provider, fp, req.Fee)
	if err != nil {
		return nil, err
	}

	rec, err := s.record(ctx, &index.Record{
		Fingerprint: fp,
		Kind:        artifact.KindFile,
		ContentID:   contentID,
		Owner:       provider.SignerAddress,
		Metadata:    req.Metadata,
		Anchor:      tx,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.complete(ctx, result, rec)
	return result, nil
}

// NotarizeBusiness fingerprints the declared business attributes, checks the
// domain's DNS attestation, anchors the fingerprint and indexes the record.
// An unavailable DNS check does not stop anchoring; the record is indexed
// without an attestation and flagged for a later recheck.
func (s *Service) NotarizeBusiness(ctx context.Context, req BusinessRequest) (result *Result, err error) {
	ctx, span := tracer.Start(ctx, "notary.NotarizeBusiness")
	defer span.End()
	start := time.Now()
	defer func() { err = s.finish(span, "business", start, err) }()

	provider, err := s.requireProvider()
	if err != nil {
		return nil, err
	}

	result = &Result{}
	result.step(StepHashing)
	record := artifact.NewBusinessRecord(req.Fields)
	fp, err := artifact.FingerprintRecord(record)
	if err != nil {
		return nil, err
	}
	domain, err := id.ParseDomainName(req.Fields.Domain)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("fingerprint", fp.String()),
		attribute.String("domain", domain.String()),
	)
	if err := s.requireUnanchored(ctx, provider, fp); err != nil {
		return nil, err
	}

	result.step(StepCheckingDNS)
	var att *attestation.Attestation
	checked, err := s.attester.Check(ctx, domain, fp)
	switch {
	case err == nil:
		att = &checked
		s.emitAttestation(ctx, checked)
	case errors.Is(err, attestation.ErrUnavailable):
		result.AttestationUnavailable = true
		s.logger.WarnContext(ctx, "attestation unavailable, anchoring without it",
			"fingerprint", fp,
			"domain", domain,
			"error", err,
		)
		s.emit(ctx, audit.EventAttestationUnavailable, audit.Event{
			Subject: fp.String(),
			Domain:  domain.String(),
			Reason:  err.Error(),
		})
	default:
		return nil, fmt.Errorf("check attestation: %w", err)
	}

	tx, err := s.anchor(ctx, result, provider, fp, req.Fee)
	if err != nil {
		return nil, err
	}

	rec, err := s.record(ctx, &index.Record{
		Fingerprint: fp,
		Kind:        artifact.KindBusiness,
		Domain:      domain,
		EntityName:  req.Fields.EntityName,
		Owner:       provider.SignerAddress,
		Metadata:    record.Fields,
		Anchor:      tx,
		Attestation: att,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.complete(ctx, result, rec)
	return result, nil
}

// requireUnanchored rejects a fingerprint whose indexed record already holds
// an active anchor. The index is durable while the coordinator's store may
// not be, so both are consulted before anything reaches the ledger.
func (s *Service) requireUnanchored(ctx context.Context, provider ProviderState, fp id.Fingerprint) error {
	rec, err := s.index.Get(ctx, fp)
	switch {
	case errors.Is(err, index.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("look up record: %w", err)
	case rec.Anchor == nil || !rec.Anchor.Status.Active():
		return nil
	}
	conflict := &anchoring.ConflictError{Existing: rec.Anchor.Clone()}
	s.emit(ctx, audit.EventAnchorRejected, audit.Event{
		Subject:       fp.String(),
		TransactionID: rec.Anchor.TransactionID,
		ActorID:       provider.SignerAddress,
		Reason:        conflict.Error(),
	})
	return conflict
}

func (s *Service) anchor(ctx context.Context, result *Result, provider ProviderState, fp id.Fingerprint, fee anchoring.FeePolicy) (*anchoring.Transaction, error) {
	result.step(StepAwaitingWallet)
	result.step(StepSending)
	tx, err := s.anchorer.Anchor(ctx, s.signer, fp, fee)
	if err != nil {
		s.emit(ctx, audit.EventAnchorRejected, audit.Event{
			Subject: fp.String(),
			ActorID: provider.SignerAddress,
			Reason:  err.Error(),
		})
		return nil, err
	}
	s.emit(ctx, audit.EventAnchorSubmitted, audit.Event{
		Subject:       fp.String(),
		TransactionID: tx.TransactionID,
		ActorID:       provider.SignerAddress,
	})
	return tx, nil
}

// record indexes a freshly anchored record. A fingerprint indexed by an
// earlier attempt whose anchor failed is enriched instead; a record whose
// anchor is still active is never overwritten.
func (s *Service) record(ctx context.Context, rec *index.Record) (*index.Record, error) {
	err := s.index.Insert(ctx, rec)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, index.ErrDuplicateFingerprint) {
		s.logger.ErrorContext(ctx, "anchor submitted but record not indexed",
			"fingerprint", rec.Fingerprint,
			"tx_id", rec.Anchor.TransactionID,
			"error", err,
		)
		return nil, fmt.Errorf("index record: %w", err)
	}
	existing, err := s.index.Get(ctx, rec.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("re-index record: %w", err)
	}
	if existing.Anchor != nil && existing.Anchor.Status.Active() {
		s.logger.ErrorContext(ctx, "anchor submitted for a fingerprint the index already holds as anchored",
			"fingerprint", rec.Fingerprint,
			"tx_id", rec.Anchor.TransactionID,
			"indexed_tx_id", existing.Anchor.TransactionID,
			"indexed_status", existing.Anchor.Status,
		)
		return nil, &anchoring.ConflictError{Existing: existing.Anchor.Clone()}
	}
	patch := index.Patch{
		Anchor:      rec.Anchor,
		Attestation: rec.Attestation,
	}
	if rec.Domain != "" {
		patch.Domain = &rec.Domain
	}
	if rec.EntityName != "" {
		patch.EntityName = &rec.EntityName
	}
	if rec.ContentID != "" {
		patch.ContentID = &rec.ContentID
	}
	if rec.Owner != "" {
		patch.Owner = &rec.Owner
	}
	updated, err := s.index.Update(ctx, rec.Fingerprint, patch)
	if err != nil {
		return nil, fmt.Errorf("re-index record: %w", err)
	}
	return updated, nil
}

func (s *Service) complete(ctx context.Context, result *Result, rec *index.Record) {
	result.Record = rec
	result.Status = rec.Status()
	if rec.Anchor != nil {
		result.ExplorerURL = s.ExplorerLink(rec.Anchor.TransactionID)
	}
	result.StatusMessage = MsgCompleted
	result.step(MsgCompleted)

	s.emit(ctx, audit.EventNotarizationCreated, audit.Event{
		Subject:    rec.Fingerprint.String(),
		Domain:     rec.Domain.String(),
		EntityName: rec.EntityName,
		ActorID:    rec.Owner,
		Decision:   string(result.Status),
	})
	s.logger.InfoContext(ctx, "notarization recorded",
		"fingerprint", rec.Fingerprint,
		"kind", rec.Kind,
		"status", result.Status,
		"request_id", requestcontext.RequestID(ctx),
	)
}

func (s *Service) emitAttestation(ctx context.Context, att attestation.Attestation) {
	decision := "not_verified"
	if att.Verified {
		decision = "verified"
	}
	s.emit(ctx, audit.EventAttestationChecked, audit.Event{
		Subject:  att.Fingerprint.String(),
		Domain:   att.Domain.String(),
		Decision: decision,
	})
}
