package shard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "arkv/pkg/domain-errors"
)

func TestLocker_SerialisesSameKey(t *testing.T) {
	l := New(time.Second)
	var inFlight, maxInFlight atomic.Int32

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Do(context.Background(), "a1b2c3", func(context.Context) error {
				n := inFlight.Add(1)
				for {
					m := maxInFlight.Load()
					if n <= m || maxInFlight.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				inFlight.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestLocker_CancelledContext(t *testing.T) {
	l := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := l.Do(ctx, "key", func(context.Context) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	assert.False(t, called)
}

func TestIndex_Stable(t *testing.T) {
	assert.Equal(t, Index("techcorp.com"), Index("techcorp.com"))
	assert.GreaterOrEqual(t, Index("x"), 0)
	assert.Less(t, Index("x"), numShards)
}
