// Package index is the verification index: the single owner of notarization
// records and the lookups third parties verify against.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	id "arkv/pkg/domain"
	dErrors "arkv/pkg/domain-errors"
	"arkv/pkg/platform/sentinel"
)

const defaultQueryLimit = 100

// Service guards record invariants in front of a Store. Callers always
// receive copies.
type Service struct {
	store  Store
	logger *slog.Logger
	limit  int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithQueryLimit caps the number of records a query returns.
func WithQueryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.limit = n
		}
	}
}

// New creates a Service.
func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("index store is required")
	}
	s := &Service{
		store:  store,
		logger: slog.Default(),
		limit:  defaultQueryLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Insert adds a new record. It fails with ErrDuplicateFingerprint when the
// fingerprint is already indexed.
func (s *Service) Insert(ctx context.Context, r *Record) error {
	if r == nil || r.Fingerprint.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "record fingerprint is required")
	}
	if r.CreatedAt.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "record createdAt is required")
	}
	if err := s.store.Insert(ctx, r.Clone()); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return fmt.Errorf("%w: %s", ErrDuplicateFingerprint, r.Fingerprint)
		}
		return fmt.Errorf("insert record: %w", err)
	}
	s.logger.DebugContext(ctx, "record indexed", "fingerprint", r.Fingerprint, "kind", r.Kind)
	return nil
}

// Update merges patch into the record for fp and returns the result.
func (s *Service) Update(ctx context.Context, fp id.Fingerprint, patch Patch) (*Record, error) {
	if fp.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "fingerprint is required")
	}
	r, err := s.store.Update(ctx, fp, func(r *Record) error {
		patch.Apply(r)
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, fp)
		}
		return nil, fmt.Errorf("update record: %w", err)
	}
	return r.Clone(), nil
}

// Get returns the record for fp.
func (s *Service) Get(ctx context.Context, fp id.Fingerprint) (*Record, error) {
	r, err := s.store.FindByFingerprint(ctx, fp)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, fp)
		}
		return nil, fmt.Errorf("find record: %w", err)
	}
	return r.Clone(), nil
}

// QueryByFingerprint matches an exact fingerprint or a hex prefix.
func (s *Service) QueryByFingerprint(ctx context.Context, exactOrPrefix string) ([]*Record, error) {
	prefix, err := id.ParseFingerprintPrefix(exactOrPrefix)
	if err != nil {
		return nil, err
	}
	if len(prefix) == id.FingerprintLength {
		r, err := s.Get(ctx, id.Fingerprint(prefix))
		if errors.Is(err, ErrNotFound) {
			return []*Record{}, nil
		}
		if err != nil {
			return nil, err
		}
		return []*Record{r}, nil
	}
	return s.collect(s.store.FindByFingerprintPrefix(ctx, prefix, s.limit))
}

// QueryByDomain matches records whose domain contains substr, ignoring case.
func (s *Service) QueryByDomain(ctx context.Context, substr string) ([]*Record, error) {
	q, err := normalizeSubstring(substr, "domain")
	if err != nil {
		return nil, err
	}
	return s.collect(s.store.FindByDomain(ctx, q, s.limit))
}

// QueryByEntity matches records whose entity name contains substr, ignoring case.
func (s *Service) QueryByEntity(ctx context.Context, substr string) ([]*Record, error) {
	q, err := normalizeSubstring(substr, "entity name")
	if err != nil {
		return nil, err
	}
	return s.collect(s.store.FindByEntity(ctx, q, s.limit))
}

// ListByDomain returns every record notarized for exactly name. The query
// limit does not apply.
func (s *Service) ListByDomain(ctx context.Context, name id.DomainName) ([]*Record, error) {
	return s.collect(s.store.ListByDomain(ctx, name))
}

// Query dispatches on the query type.
func (s *Service) Query(ctx context.Context, qt id.QueryType, q string) ([]*Record, error) {
	switch qt {
	case id.QueryByFingerprint:
		return s.QueryByFingerprint(ctx, q)
	case id.QueryByDomain:
		return s.QueryByDomain(ctx, q)
	case id.QueryByEntity:
		return s.QueryByEntity(ctx, q)
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unsupported query type")
	}
}

func (s *Service) collect(records []*Record, err error) ([]*Record, error) {
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	out := make([]*Record, 0, len(records))
	for _, r := range records {
		out = append(out, r.Clone())
	}
	return out, nil
}

func normalizeSubstring(s, field string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, field+" query is required")
	}
	if len(v) > 253 {
		return "", dErrors.New(dErrors.CodeInvalidInput, field+" query is too long")
	}
	return v, nil
}
