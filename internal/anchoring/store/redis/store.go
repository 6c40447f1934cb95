// Package redis stores anchor transactions in Redis so every server instance
// shares the per-fingerprint claim.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"arkv/internal/anchoring"
	id "arkv/pkg/domain"
	"arkv/pkg/platform/sentinel"
)

const (
	fingerprintKeyPrefix = "arkv:anchor:fp:"
	transactionKeyPrefix = "arkv:anchor:tx:"
	pendingSetKey        = "arkv:anchor:pending"

	// DefaultClaimTTL bounds how long an unconfirmed claim blocks a fingerprint.
	DefaultClaimTTL = 2 * time.Minute

	maxOptimisticRetries = 3
)

// Store is a Redis-backed anchoring.Store. Every read-modify-write runs under
// WATCH on the fingerprint key; claims carry a TTL so a crashed submission
// frees its fingerprint on its own.
type Store struct {
	client   *redis.Client
	claimTTL time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithClaimTTL sets how long a claim survives without a Commit or Release.
func WithClaimTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.claimTTL = d
		}
	}
}

// New constructs a Redis anchor store.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{
		client:   client,
		claimTTL: DefaultClaimTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

type record struct {
	Fingerprint   string     `json:"fingerprint"`
	TransactionID string     `json:"tx_id,omitempty"`
	FeePaid       string     `json:"fee_paid,omitempty"`
	SubmittedAt   time.Time  `json:"submitted_at"`
	Status        string     `json:"status"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	Reason        string     `json:"reason,omitempty"`
}

func encode(tx *anchoring.Transaction) ([]byte, error) {
	rec := record{
		Fingerprint:   tx.Fingerprint.String(),
		TransactionID: tx.TransactionID,
		SubmittedAt:   tx.SubmittedAt.UTC(),
		Status:        string(tx.Status),
		ResolvedAt:    tx.ResolvedAt,
		Reason:        tx.Reason,
	}
	if tx.FeePaid != nil {
		rec.FeePaid = tx.FeePaid.String()
	}
	return json.Marshal(rec)
}

func decode(data []byte) (*anchoring.Transaction, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode anchor record: %w", err)
	}
	tx := &anchoring.Transaction{
		Fingerprint:   id.Fingerprint(rec.Fingerprint),
		TransactionID: rec.TransactionID,
		SubmittedAt:   rec.SubmittedAt,
		Status:        anchoring.Status(rec.Status),
		ResolvedAt:    rec.ResolvedAt,
		Reason:        rec.Reason,
	}
	if rec.FeePaid != "" {
		fee, ok := new(big.Int).SetString(rec.FeePaid, 10)
		if !ok {
			return nil, fmt.Errorf("decode anchor record: invalid fee %q", rec.FeePaid)
		}
		tx.FeePaid = fee
	}
	return tx, nil
}

func fingerprintKey(fp id.Fingerprint) string {
	return fingerprintKeyPrefix + fp.String()
}

func transactionKey(txID string) string {
	return transactionKeyPrefix + txID
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func load(ctx context.Context, c getter, key string) (*anchoring.Transaction, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decode(data)
}

func (s *Store) Claim(ctx context.Context, fp id.Fingerprint, at time.Time) (*anchoring.Transaction, error) {
	key := fingerprintKey(fp)
	claim, err := encode(&anchoring.Transaction{
		Fingerprint: fp,
		SubmittedAt: at,
		Status:      anchoring.StatusSubmitting,
	})
	if err != nil {
		return nil, err
	}

	var existing *anchoring.Transaction
	err = s.client.Watch(ctx, func(txn *redis.Tx) error {
		cur, err := load(ctx, txn, key)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		if cur != nil && cur.Status.Active() {
			existing = cur
			return sentinel.ErrConflict
		}
		_, err = txn.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, claim, s.claimTTL)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil, nil
	case errors.Is(err, sentinel.ErrConflict):
		return existing, sentinel.ErrConflict
	case errors.Is(err, redis.TxFailedErr):
		// Another instance wrote the key between WATCH and EXEC.
		cur, loadErr := load(ctx, s.client, key)
		if loadErr != nil && !errors.Is(loadErr, sentinel.ErrNotFound) {
			return nil, loadErr
		}
		return cur, sentinel.ErrConflict
	default:
		return nil, fmt.Errorf("claim anchor: %w", err)
	}
}

func (s *Store) Commit(ctx context.Context, tx *anchoring.Transaction) error {
	key := fingerprintKey(tx.Fingerprint)
	data, err := encode(tx)
	if err != nil {
		return err
	}

	err = s.client.Watch(ctx, func(txn *redis.Tx) error {
		cur, err := load(ctx, txn, key)
		if errors.Is(err, sentinel.ErrNotFound) {
			return sentinel.ErrInvalidState
		}
		if err != nil {
			return err
		}
		if cur.Status != anchoring.StatusSubmitting {
			return sentinel.ErrInvalidState
		}
		_, err = txn.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.Set(ctx, transactionKey(tx.TransactionID), tx.Fingerprint.String(), 0)
			pipe.SAdd(ctx, pendingSetKey, tx.Fingerprint.String())
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return sentinel.ErrInvalidState
	}
	return err
}

func (s *Store) Release(ctx context.Context, fp id.Fingerprint) error {
	key := fingerprintKey(fp)
	err := s.client.Watch(ctx, func(txn *redis.Tx) error {
		cur, err := load(ctx, txn, key)
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if cur.Status != anchoring.StatusSubmitting {
			return nil
		}
		_, err = txn.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		// The claim changed hands; it is no longer ours to release.
		return nil
	}
	return err
}

func (s *Store) Resolve(ctx context.Context, txID string, status anchoring.Status, reason string, at time.Time) (*anchoring.Transaction, error) {
	fp, err := s.client.Get(ctx, transactionKey(txID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	key := fingerprintKey(id.Fingerprint(fp))

	for attempt := 0; attempt < maxOptimisticRetries; attempt++ {
		var result *anchoring.Transaction
		err = s.client.Watch(ctx, func(txn *redis.Tx) error {
			cur, err := load(ctx, txn, key)
			if err != nil {
				return err
			}
			if cur.TransactionID != txID {
				return sentinel.ErrNotFound
			}
			if cur.Status != anchoring.StatusPending {
				result = cur
				return sentinel.ErrInvalidState
			}
			cur.Status = status
			cur.Reason = reason
			cur.ResolvedAt = &at
			data, err := encode(cur)
			if err != nil {
				return err
			}
			_, err = txn.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, 0)
				pipe.SRem(ctx, pendingSetKey, fp)
				return nil
			})
			result = cur
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, sentinel.ErrInvalidState) {
			return result, err
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("resolve anchor %s: %w", txID, sentinel.ErrConflict)
}

func (s *Store) FindByFingerprint(ctx context.Context, fp id.Fingerprint) (*anchoring.Transaction, error) {
	tx, err := load(ctx, s.client, fingerprintKey(fp))
	if err != nil {
		return nil, err
	}
	if tx.Status == anchoring.StatusSubmitting {
		return nil, sentinel.ErrNotFound
	}
	return tx, nil
}

func (s *Store) FindByTransactionID(ctx context.Context, txID string) (*anchoring.Transaction, error) {
	fp, err := s.client.Get(ctx, transactionKey(txID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	tx, err := load(ctx, s.client, fingerprintKey(id.Fingerprint(fp)))
	if err != nil {
		return nil, err
	}
	if tx.TransactionID != txID {
		return nil, sentinel.ErrNotFound
	}
	return tx, nil
}

// ListPending returns pending transactions, oldest first.
func (s *Store) ListPending(ctx context.Context) ([]*anchoring.Transaction, error) {
	members, err := s.client.SMembers(ctx, pendingSetKey).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}

	keys := make([]string, len(members))
	for i, fp := range members {
		keys[i] = fingerprintKey(id.Fingerprint(fp))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var out []*anchoring.Transaction
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		tx, err := decode([]byte(raw))
		if err != nil {
			return nil, err
		}
		if tx.Status == anchoring.StatusPending {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}
