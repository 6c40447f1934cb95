package index

import (
	"context"

	id "arkv/pkg/domain"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Store

// Store persists notarization records. Query methods return matches ordered
// by CreatedAt descending, at most limit of them.
type Store interface {
	// Insert returns sentinel.ErrConflict when the fingerprint exists.
	Insert(ctx context.Context, r *Record) error
	// Update runs fn on the current record and stores the result as one
	// atomic step per fingerprint. It returns sentinel.ErrNotFound when the
	// fingerprint is absent.
	Update(ctx context.Context, fp id.Fingerprint, fn func(r *Record) error) (*Record, error)
	FindByFingerprint(ctx context.Context, fp id.Fingerprint) (*Record, error)
	FindByFingerprintPrefix(ctx context.Context, prefix id.FingerprintPrefix, limit int) ([]*Record, error)
	// FindByDomain and FindByEntity match a case-insensitive substring.
	FindByDomain(ctx context.Context, substr string, limit int) ([]*Record, error)
	FindByEntity(ctx context.Context, substr string, limit int) ([]*Record, error)
	// ListByDomain returns every record whose domain equals name, with no
	// limit applied.
	ListByDomain(ctx context.Context, name id.DomainName) ([]*Record, error)
}
