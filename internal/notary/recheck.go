package notary

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"arkv/internal/attestation"
	"arkv/internal/index"
	id "arkv/pkg/domain"
	dErrors "arkv/pkg/domain-errors"
	"arkv/pkg/platform/audit"
)

// RecheckAttestation re-runs the DNS check for a business notarization and
// replaces its attestation. Anchor state is never touched.
func (s *Service) RecheckAttestation(ctx context.Context, fingerprint string) (*Verification, error) {
	ctx, span := tracer.Start(ctx, "notary.RecheckAttestation")
	defer span.End()

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
	v, err := s.recheck(ctx, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recheck failed")
		return nil, translate(err)
	}
	return v, nil
}

// RecheckDomain rechecks every notarization of a domain concurrently. Records
// whose DNS check is unavailable keep their previous attestation and are
// flagged in the result.
func (s *Service) RecheckDomain(ctx context.Context, domain string) ([]Verification, error) {
	ctx, span := tracer.Start(ctx, "notary.RecheckDomain")
	defer span.End()

	name, err := id.ParseDomainName(domain)
	if err != nil {
		return nil, translate(err)
	}
	span.SetAttributes(attribute.String("domain", name.String()))

	records, err := s.index.ListByDomain(ctx, name)
	if err != nil {
		return nil, translate(err)
	}

	out := make([]Verification, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.recheckConcurrency)
	for i, r := range records {
		g.Go(func() error {
			v, err := s.recheck(gctx, r)
			switch {
			case err == nil:
				out[i] = *v
				return nil
			case errors.Is(err, attestation.ErrUnavailable):
				out[i] = newVerification(r)
				out[i].AttestationUnavailable = true
				return nil
			default:
				return err
			}
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recheck failed")
		return nil, translate(err)
	}
	s.logger.InfoContext(ctx, "domain rechecked", "domain", name, "records", len(out))
	return out, nil
}

func (s *Service) recheck(ctx context.Context, r *index.Record) (*Verification, error) {
	att, err := s.attester.Recheck(ctx, r.Domain, r.Fingerprint)
	if err != nil {
		if errors.Is(err, attestation.ErrUnavailable) {
			s.metrics.IncrementRecheck("unavailable")
			s.emit(ctx, audit.EventAttestationUnavailable, audit.Event{
				Subject: r.Fingerprint.String(),
				Domain:  r.Domain.String(),
				Reason:  err.Error(),
			})
		} else {
			s.metrics.IncrementRecheck("error")
		}
		return nil, fmt.Errorf("recheck %s: %w", r.Fingerprint, err)
	}
	s.emitAttestation(ctx, att)

	updated, err := s.index.Update(ctx, r.Fingerprint, index.Patch{Attestation: &att})
	if err != nil {
		s.metrics.IncrementRecheck("error")
		return nil, fmt.Errorf("record attestation: %w", err)
	}
	if att.Verified {
		s.metrics.IncrementRecheck("verified")
	} else {
		s.metrics.IncrementRecheck("not_verified")
	}
	v := newVerification(updated)
	return &v, nil
}
