// Package memory is an in-process anchor store for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"arkv/internal/anchoring"
	id "arkv/pkg/domain"
	"arkv/pkg/platform/sentinel"
)

// DefaultClaimTTL bounds how long an unconfirmed claim blocks a fingerprint.
const DefaultClaimTTL = 2 * time.Minute

type InMemoryStore struct {
	mu       sync.RWMutex
	byFP     map[id.Fingerprint]*anchoring.Transaction
	byTxID   map[string]id.Fingerprint
	claimTTL time.Duration
}

// Option configures an InMemoryStore.
type Option func(*InMemoryStore)

// WithClaimTTL sets how long a claim survives without a Commit or Release.
func WithClaimTTL(d time.Duration) Option {
	return func(s *InMemoryStore) {
		if d > 0 {
			s.claimTTL = d
		}
	}
}

func New(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{
		byFP:     make(map[id.Fingerprint]*anchoring.Transaction),
		byTxID:   make(map[string]id.Fingerprint),
		claimTTL: DefaultClaimTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Claim(_ context.Context, fp id.Fingerprint, at time.Time) (*anchoring.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byFP[fp]; ok && s.blocks(existing, at) {
		return existing.Clone(), sentinel.ErrConflict
	}
	s.byFP[fp] = &anchoring.Transaction{
		Fingerprint: fp,
		SubmittedAt: at,
		Status:      anchoring.StatusSubmitting,
	}
	return nil, nil
}

// blocks reports whether existing prevents a new claim at time at.
func (s *InMemoryStore) blocks(existing *anchoring.Transaction, at time.Time) bool {
	if existing.Status == anchoring.StatusSubmitting {
		return at.Sub(existing.SubmittedAt) < s.claimTTL
	}
	return existing.Status.Active()
}

func (s *InMemoryStore) Commit(_ context.Context, tx *anchoring.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byFP[tx.Fingerprint]
	if !ok || existing.Status != anchoring.StatusSubmitting {
		return sentinel.ErrInvalidState
	}
	if prev := existing.TransactionID; prev != "" {
		delete(s.byTxID, prev)
	}
	s.byFP[tx.Fingerprint] = tx.Clone()
	s.byTxID[tx.TransactionID] = tx.Fingerprint
	return nil
}

func (s *InMemoryStore) Release(_ context.Context, fp id.Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byFP[fp]; ok && existing.Status == anchoring.StatusSubmitting {
		delete(s.byFP, fp)
	}
	return nil
}

func (s *InMemoryStore) Resolve(_ context.Context, txID string, status anchoring.Status, reason string, at time.Time) (*anchoring.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fp, ok := s.byTxID[txID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	tx, ok := s.byFP[fp]
	if !ok || tx.TransactionID != txID {
		return nil, sentinel.ErrNotFound
	}
	if tx.Status != anchoring.StatusPending {
		return tx.Clone(), sentinel.ErrInvalidState
	}
	tx.Status = status
	tx.Reason = reason
	tx.ResolvedAt = &at
	return tx.Clone(), nil
}

func (s *InMemoryStore) FindByFingerprint(_ context.Context, fp id.Fingerprint) (*anchoring.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.byFP[fp]
	if !ok || tx.Status == anchoring.StatusSubmitting {
		return nil, sentinel.ErrNotFound
	}
	return tx.Clone(), nil
}

func (s *InMemoryStore) FindByTransactionID(_ context.Context, txID string) (*anchoring.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fp, ok := s.byTxID[txID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	tx, ok := s.byFP[fp]
	if !ok || tx.TransactionID != txID {
		return nil, sentinel.ErrNotFound
	}
	return tx.Clone(), nil
}

// ListPending returns pending transactions, oldest first.
func (s *InMemoryStore) ListPending(_ context.Context) ([]*anchoring.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*anchoring.Transaction
	for _, tx := range s.byFP {
		if tx.Status == anchoring.StatusPending {
			out = append(out, tx.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}
