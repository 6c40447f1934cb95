package ratelimit

import (
	"context"
	"time"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks BucketStore

// BucketStore counts requests in sliding windows.
type BucketStore interface {
	// Allow records one request under key if fewer than limit were recorded
	// within window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}
