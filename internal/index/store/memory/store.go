// Package memory is an in-process verification index store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"arkv/internal/index"
	id "arkv/pkg/domain"
	"arkv/pkg/platform/sentinel"
	"arkv/pkg/platform/shard"
)

// InMemoryStore keeps records in a map. Updates for one fingerprint are
// serialized by a shard lock and swap in a whole new record, so readers
// never observe a partial write.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.Fingerprint]*index.Record
	locks   *shard.Locker
}

func New() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[id.Fingerprint]*index.Record),
		locks:   shard.New(0),
	}
}

func (s *InMemoryStore) Insert(_ context.Context, r *index.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.Fingerprint]; ok {
		return sentinel.ErrConflict
	}
	s.records[r.Fingerprint] = r.Clone()
	return nil
}

func (s *InMemoryStore) Update(ctx context.Context, fp id.Fingerprint, fn func(r *index.Record) error) (*index.Record, error) {
	var updated *index.Record
	err := s.locks.Do(ctx, fp.String(), func(context.Context) error {
		s.mu.RLock()
		current, ok := s.records[fp]
		s.mu.RUnlock()
		if !ok {
			return sentinel.ErrNotFound
		}

		next := current.Clone()
		if err := fn(next); err != nil {
			return err
		}
		next.Fingerprint = fp

		s.mu.Lock()
		s.records[fp] = next
		s.mu.Unlock()
		updated = next.Clone()
		return nil
	})
	return updated, err
}

func (s *InMemoryStore) FindByFingerprint(_ context.Context, fp id.Fingerprint) (*index.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[fp]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *InMemoryStore) FindByFingerprintPrefix(_ context.Context, prefix id.FingerprintPrefix, limit int) ([]*index.Record, error) {
	return s.filter(limit, func(r *index.Record) bool {
		return prefix.Matches(r.Fingerprint)
	}), nil
}

func (s *InMemoryStore) FindByDomain(_ context.Context, substr string, limit int) ([]*index.Record, error) {
	substr = strings.ToLower(substr)
	return s.filter(limit, func(r *index.Record) bool {
		return r.Domain != "" && strings.Contains(strings.ToLower(r.Domain.String()), substr)
	}), nil
}

func (s *InMemoryStore) FindByEntity(_ context.Context, substr string, limit int) ([]*index.Record, error) {
	substr = strings.ToLower(substr)
	return s.filter(limit, func(r *index.Record) bool {
		return r.EntityName != "" && strings.Contains(strings.ToLower(r.EntityName), substr)
	}), nil
}

func (s *InMemoryStore) ListByDomain(_ context.Context, name id.DomainName) ([]*index.Record, error) {
	return s.filter(0, func(r *index.Record) bool {
		return r.Domain == name
	}), nil
}

// filter returns matching records, newest first.
func (s *InMemoryStore) filter(limit int, match func(*index.Record) bool) []*index.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*index.Record{}
	for _, r := range s.records {
		if match(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Fingerprint > out[j].Fingerprint
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
