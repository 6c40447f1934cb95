package notary

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"arkv/internal/attestation"
	id "arkv/pkg/domain"
	dErrors "arkv/pkg/domain-errors"
)

// Verify runs an index lookup and classifies every match. No match is an
// empty result, not an error.
func (s *Service) Verify(ctx context.Context, qt id.QueryType, q string) (out []Verification, err error) {
	ctx, span := tracer.Start(ctx, "notary.Verify")
	defer span.End()
	start := time.Now()
	defer func() { err = s.finish(span, "verify", start, err) }()
	span.SetAttributes(attribute.String("query_type", qt.String()))

	records, err := s.index.Query(ctx, qt, q)
	if err != nil {
		return nil, err
	}
	out = make([]Verification, 0, len(records))
	for _, r := range records {
		out = append(out, newVerification(r))
	}
	return out, nil
}

// Get returns the verification of one exact fingerprint.
func (s *Service) Get(ctx context.Context, fingerprint string) (*Verification, error) {
	fp, err := id.ParseFingerprint(fingerprint)
	if err != nil {
		return nil, translate(err)
	}
	r, err := s.index.Get(ctx, fp)
	if err != nil {
		return nil, translate(err)
	}
	v := newVerification(r)
	return &v, nil
}

// DNSInstructions returns the TXT record the owner of a business
// notarization's domain must publish for the attestation to verify.
func (s *Service) DNSInstructions(ctx context.Context, fingerprint string) (*DNSInstructions, error) {
	fp, err := id.ParseFingerprint(fingerprint)
	if err != nil {
		return nil, translate(err)
	}
	r, err := s.index.Get(ctx, fp)
	if err != nil {
		return nil, translate(err)
	}
	if r.Domain == "" {
		return nil, dErrors.New(dErrors.CodePreconditionFailed, "notarization has no domain to attest")
	}
	return &DNSInstructions{
		Domain:      r.Domain,
		Fingerprint: fp,
		Name:        r.Domain.AttestationName(),
		Type:        "TXT",
		Value:       attestation.ExpectedRecord(fp),
	}, nil
}
