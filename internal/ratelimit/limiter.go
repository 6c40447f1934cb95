package ratelimit

import (
	"context"
	"fmt"
	"log/slog"

	"arkv/pkg/platform/circuit"
)

// Limiter checks client requests against per-class limits. When the primary
// store keeps failing, a circuit breaker moves checks to the fallback store
// until the primary recovers.
type Limiter struct {
	primary  BucketStore
	fallback BucketStore
	breaker  *circuit.Breaker
	limits   map[EndpointClass]Limit
	logger   *slog.Logger
}

type LimiterOption func(*Limiter)

// WithFallback sets the store used while the primary is unavailable.
func WithFallback(store BucketStore, breaker *circuit.Breaker) LimiterOption {
	return func(l *Limiter) {
		l.fallback = store
		l.breaker = breaker
	}
}

func WithLogger(logger *slog.Logger) LimiterOption {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// NewLimiter creates a Limiter. Classes without a limit are not limited.
func NewLimiter(primary BucketStore, limits map[EndpointClass]Limit, opts ...LimiterOption) (*Limiter, error) {
	if primary == nil {
		return nil, fmt.Errorf("bucket store is required")
	}
	l := &Limiter{
		primary: primary,
		limits:  limits,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.fallback != nil && l.breaker == nil {
		l.breaker = circuit.New("ratelimit")
	}
	return l, nil
}

// Check records a request from client in class. degraded is true when the
// decision came from the fallback store.
func (l *Limiter) Check(ctx context.Context, client string, class EndpointClass) (result *Result, degraded bool, err error) {
	limit, ok := l.limits[class]
	if !ok || limit.Requests <= 0 {
		return nil, false, nil
	}
	key := Key(class, client)

	if l.fallback == nil {
		result, err = l.primary.Allow(ctx, key, limit.Requests, limit.Window)
		return result, false, err
	}

	if l.breaker.Allow() {
		result, err = l.primary.Allow(ctx, key, limit.Requests, limit.Window)
		if err == nil {
			if _, change := l.breaker.RecordSuccess(); change.Closed {
				l.logger.InfoContext(ctx, "rate limit store recovered")
			}
			return result, false, nil
		}
		useFallback, change := l.breaker.RecordFailure()
		if change.Opened {
			l.logger.WarnContext(ctx, "rate limit store failing, using in-memory fallback", "error", err)
		}
		if !useFallback {
			return nil, false, err
		}
	}

	result, err = l.fallback.Allow(ctx, key, limit.Requests, limit.Window)
	return result, true, err
}
