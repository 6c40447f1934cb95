// Package shard serialises work per key with a fixed array of mutexes.
//
// Keys hash onto one of numShards locks, so unrelated keys rarely contend
// while two operations on the same key never interleave.
package shard

import (
	"context"
	"sync"
	"time"

	"github.com/zeebo/xxh3"

	dErrors "arkv/pkg/domain-errors"
)

const numShards = 128

// DefaultTimeout bounds a locked section when the caller set no deadline.
const DefaultTimeout = 5 * time.Second

// Locker runs functions under a per-key shard lock.
type Locker struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

// New creates a Locker. A zero timeout selects DefaultTimeout.
func New(timeout time.Duration) *Locker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Locker{timeout: timeout}
}

// Do runs fn while holding the shard lock for key.
func (l *Locker) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	mu := &l.shards[Index(key)]
	mu.Lock()
	defer mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation aborted: context cancelled")
	}
	return fn(ctx)
}

// Index returns the shard slot for key.
func Index(key string) int {
	return int(xxh3.HashString(key) % numShards)
}
