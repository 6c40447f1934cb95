//go:build integration

package redis_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"arkv/internal/anchoring"
	anchorredis "arkv/internal/anchoring/store/redis"
	id "arkv/pkg/domain"
	"arkv/pkg/platform/sentinel"
	"arkv/pkg/testutil/containers"
)

const fp = id.Fingerprint("69c698c5b973e0f46e4c79a0e98184779ee00d503e19cab55c40b25ca9af399f")

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *anchorredis.Store
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = anchorredis.New(s.redis.Client, anchorredis.WithClaimTTL(time.Second))
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) commit(txID string, at time.Time) {
	ctx := context.Background()
	_, err := s.store.Claim(ctx, fp, at)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Commit(ctx, &anchoring.Transaction{
		Fingerprint:   fp,
		TransactionID: txID,
		SubmittedAt:   at,
		Status:        anchoring.StatusPending,
	}))
}

// TestConcurrentClaims verifies that exactly one of many concurrent claims
// for one fingerprint wins across connections.
func (s *RedisStoreSuite) TestConcurrentClaims() {
	ctx := context.Background()
	const goroutines = 25

	var (
		wg        sync.WaitGroup
		wins      atomic.Int32
		conflicts atomic.Int32
	)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Claim(ctx, fp, time.Now())
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())
}

func (s *RedisStoreSuite) TestClaimExpires() {
	ctx := context.Background()
	_, err := s.store.Claim(ctx, fp, time.Now())
	s.Require().NoError(err)

	s.Eventually(func() bool {
		_, err := s.store.Claim(ctx, fp, time.Now())
		return err == nil
	}, 3*time.Second, 100*time.Millisecond)
}

func (s *RedisStoreSuite) TestCommitAndResolve() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	s.commit("0xabc", now)

	s.Run("committed transaction outlives the claim ttl", func() {
		time.Sleep(1200 * time.Millisecond)
		tx, err := s.store.FindByFingerprint(ctx, fp)
		s.Require().NoError(err)
		s.Equal("0xabc", tx.TransactionID)
		s.True(now.Equal(tx.SubmittedAt))
	})

	s.Run("pending listing", func() {
		pending, err := s.store.ListPending(ctx)
		s.Require().NoError(err)
		s.Require().Len(pending, 1)
		s.Equal(fp, pending[0].Fingerprint)
	})

	s.Run("resolve to confirmed", func() {
		tx, err := s.store.Resolve(ctx, "0xabc", anchoring.StatusConfirmed, "", now)
		s.Require().NoError(err)
		s.Equal(anchoring.StatusConfirmed, tx.Status)

		_, err = s.store.Resolve(ctx, "0xabc", anchoring.StatusFailed, "", now)
		s.ErrorIs(err, sentinel.ErrInvalidState)

		pending, err := s.store.ListPending(ctx)
		s.Require().NoError(err)
		s.Empty(pending)
	})

	s.Run("confirmed fingerprint cannot be claimed", func() {
		existing, err := s.store.Claim(ctx, fp, time.Now())
		s.ErrorIs(err, sentinel.ErrConflict)
		s.Equal(anchoring.StatusConfirmed, existing.Status)
	})
}

func (s *RedisStoreSuite) TestReleaseOnlyDropsClaims() {
	ctx := context.Background()
	s.commit("0xdef", time.Now())

	s.Require().NoError(s.store.Release(ctx, fp))

	tx, err := s.store.FindByTransactionID(ctx, "0xdef")
	s.Require().NoError(err)
	s.Equal(anchoring.StatusPending, tx.Status)
}
