package index

import (
	"maps"
	"time"

	"arkv/internal/anchoring"
	"arkv/internal/artifact"
	"arkv/internal/attestation"
	id "arkv/pkg/domain"
)

// Status is the verification state derived from a record's attestation and
// anchor. It is computed on read and never stored.
type Status string

const (
	StatusUnattested     Status = "Unattested"
	StatusDomainVerified Status = "DomainVerified"
	StatusAnchored       Status = "Anchored"
	StatusFullyVerified  Status = "FullyVerified"
)

// Record is a notarization: a fingerprint plus whatever attestation and
// anchor have been attached to it. Fields move from empty to populated and
// never back.
type Record struct {
	Fingerprint id.Fingerprint
	Kind        artifact.Kind
	Domain      id.DomainName
	EntityName  string
	ContentID   string
	Owner       string
	Metadata    map[string]string
	Anchor      *anchoring.Transaction
	Attestation *attestation.Attestation
	CreatedAt   time.Time
}

// Status derives the verification state.
func (r *Record) Status() Status {
	verified := r.Attestation != nil && r.Attestation.Verified
	anchored := r.Anchor != nil && r.Anchor.Status == anchoring.StatusConfirmed
	switch {
	case verified && anchored:
		return StatusFullyVerified
	case anchored:
		return StatusAnchored
	case verified:
		return StatusDomainVerified
	default:
		return StatusUnattested
	}
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Metadata != nil {
		c.Metadata = maps.Clone(r.Metadata)
	}
	c.Anchor = r.Anchor.Clone()
	if r.Attestation != nil {
		att := *r.Attestation
		c.Attestation = &att
	}
	return &c
}

// Patch enriches a record. Nil fields and empty strings leave the record
// unchanged, so a patch can never clear a populated field.
type Patch struct {
	Domain      *id.DomainName
	EntityName  *string
	ContentID   *string
	Owner       *string
	Anchor      *anchoring.Transaction
	Attestation *attestation.Attestation
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Domain == nil && p.EntityName == nil && p.ContentID == nil &&
		p.Owner == nil && p.Anchor == nil && p.Attestation == nil
}

// Apply merges the patch into r.
func (p Patch) Apply(r *Record) {
	if p.Domain != nil && *p.Domain != "" {
		r.Domain = *p.Domain
	}
	if p.EntityName != nil && *p.EntityName != "" {
		r.EntityName = *p.EntityName
	}
	if p.ContentID != nil && *p.ContentID != "" {
		r.ContentID = *p.ContentID
	}
	if p.Owner != nil && *p.Owner != "" {
		r.Owner = *p.Owner
	}
	if p.Anchor != nil {
		r.Anchor = p.Anchor.Clone()
	}
	if p.Attestation != nil {
		att := *p.Attestation
		r.Attestation = &att
	}
}
