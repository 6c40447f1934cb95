// Package attestation checks that a domain publishes a fingerprint under its
// _arkv TXT record.
package attestation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"arkv/internal/attestation/metrics"
	id "arkv/pkg/domain"
	"arkv/pkg/platform/circuit"
)

var tracer = otel.Tracer("attestation")

const (
	defaultRetries       = 2
	defaultBackoff       = 200 * time.Millisecond
	defaultLookupTimeout = 3 * time.Second
	defaultTotalTimeout  = 10 * time.Second
)

var errCircuitOpen = errors.New("resolver circuit open")

// Checker performs domain attestation checks with bounded retries and wait.
type Checker struct {
	resolver      Resolver
	logger        *slog.Logger
	metrics       *metrics.Metrics
	retries       int
	backoff       time.Duration
	lookupTimeout time.Duration
	totalTimeout  time.Duration
	breaker       *circuit.Breaker
	limiter       *rate.Limiter
	cache         *cache.Cache
	now           func() time.Time
}

// Option configures a Checker.
type Option func(*Checker)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Checker) {
		c.metrics = m
	}
}

// WithRetries sets how many times a faulted lookup is retried.
func WithRetries(n int) Option {
	return func(c *Checker) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithBackoff sets the base delay between retries; it doubles per attempt.
func WithBackoff(d time.Duration) Option {
	return func(c *Checker) {
		if d >= 0 {
			c.backoff = d
		}
	}
}

// WithLookupTimeout bounds a single TXT lookup.
func WithLookupTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.lookupTimeout = d
		}
	}
}

// WithTotalTimeout bounds a whole check including retries.
func WithTotalTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.totalTimeout = d
		}
	}
}

// WithBreaker guards the resolver with a circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Checker) {
		c.breaker = b
	}
}

// WithRateLimit bounds outbound lookups to rps with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Checker) {
		if rps > 0 {
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithPositiveCache remembers verified answers for ttl. Negative answers are
// never cached so a freshly published record is seen on the next check.
func WithPositiveCache(ttl time.Duration) Option {
	return func(c *Checker) {
		if ttl > 0 {
			c.cache = cache.New(ttl, 2*ttl)
		}
	}
}

// WithClock overrides the time source for CheckedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Checker.
func New(resolver Resolver, opts ...Option) (*Checker, error) {
	if resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	c := &Checker{
		resolver:      resolver,
		logger:        slog.Default(),
		retries:       defaultRetries,
		backoff:       defaultBackoff,
		lookupTimeout: defaultLookupTimeout,
		totalTimeout:  defaultTotalTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Check reports whether domain publishes fp. A missing or mismatched record
// is a normal Verified=false result; an *UnavailableError is returned only
// when the resolver could not be consulted.
func (c *Checker) Check(ctx context.Context, domain id.DomainName, fp id.Fingerprint) (Attestation, error) {
	if att, ok := c.cached(domain, fp); ok {
		c.metrics.IncrementCacheHit()
		return att, nil
	}
	return c.check(ctx, domain, fp)
}

// Recheck is Check without the positive-answer cache.
func (c *Checker) Recheck(ctx context.Context, domain id.DomainName, fp id.Fingerprint) (Attestation, error) {
	return c.check(ctx, domain, fp)
}

func (c *Checker) check(ctx context.Context, domain id.DomainName, fp id.Fingerprint) (Attestation, error) {
	ctx, span := tracer.Start(ctx, "Attestation.Check")
	defer span.End()
	span.SetAttributes(attribute.String("domain", domain.String()))

	records, attempts, err := c.lookup(ctx, domain.AttestationName())
	if err != nil {
		unavailable := &UnavailableError{Domain: domain, Attempts: attempts, Err: err}
		span.RecordError(unavailable)
		span.SetStatus(codes.Error, "attestation unavailable")
		c.metrics.IncrementCheck("unavailable")
		c.logger.WarnContext(ctx, "attestation unavailable",
			"domain", domain,
			"fingerprint", fp,
			"attempts", attempts,
			"error", err,
		)
		return Attestation{}, unavailable
	}

	att := Attestation{
		Domain:      domain,
		Fingerprint: fp,
		CheckedAt:   c.now(),
	}
	if rec, ok := Match(records, fp); ok {
		att.Verified = true
		att.MatchedRecord = rec
		c.remember(att)
		c.metrics.IncrementCheck("verified")
	} else {
		c.metrics.IncrementCheck("unverified")
	}
	span.SetAttributes(attribute.Bool("verified", att.Verified))
	c.logger.DebugContext(ctx, "attestation checked",
		"domain", domain,
		"fingerprint", fp,
		"verified", att.Verified,
		"records", len(records),
	)
	return att, nil
}

// lookup resolves name, retrying resolver faults. NXDOMAIN is an empty answer.
func (c *Checker) lookup(ctx context.Context, name string) ([]TXTRecord, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.totalTimeout)
	defer cancel()

	if c.breaker != nil && !c.breaker.Allow() {
		return nil, 0, errCircuitOpen
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.metrics.IncrementRetry()
			if err := sleep(ctx, c.backoff<<(attempt-1)); err != nil {
				break
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				lastErr = fmt.Errorf("rate limit wait: %w", err)
				break
			}
		}

		attempts++
		records, err := c.resolveOnce(ctx, name)
		if err == nil || errors.Is(err, ErrNameNotFound) {
			c.recordSuccess()
			return records, attempts, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	c.recordFailure()
	return nil, attempts, lastErr
}

func (c *Checker) resolveOnce(ctx context.Context, name string) ([]TXTRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	start := time.Now()
	records, err := c.resolver.ResolveTXT(ctx, name)
	c.metrics.ObserveLookup(time.Since(start))
	return records, err
}

func (c *Checker) recordSuccess() {
	if c.breaker == nil {
		return
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.metrics.SetBreakerOpen(false)
		c.logger.Info("resolver circuit closed", "breaker", c.breaker.Name())
	}
}

func (c *Checker) recordFailure() {
	if c.breaker == nil {
		return
	}
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.metrics.SetBreakerOpen(true)
		c.logger.Warn("resolver circuit opened", "breaker", c.breaker.Name())
	}
}

func (c *Checker) cached(domain id.DomainName, fp id.Fingerprint) (Attestation, bool) {
	if c.cache == nil {
		return Attestation{}, false
	}
	v, ok := c.cache.Get(cacheKey(domain, fp))
	if !ok {
		return Attestation{}, false
	}
	att, ok := v.(Attestation)
	return att, ok
}

func (c *Checker) remember(att Attestation) {
	if c.cache != nil {
		c.cache.SetDefault(cacheKey(att.Domain, att.Fingerprint), att)
	}
}

func cacheKey(domain id.DomainName, fp id.Fingerprint) string {
	return domain.String() + "|" + fp.String()
}

// Match returns the first record containing "SHA-ID:<fp>". The comparison
// ignores case so records published with upper-case hex still match.
func Match(records []TXTRecord, fp id.Fingerprint) (string, bool) {
	needle := strings.ToLower(ExpectedRecord(fp))
	for _, rec := range records {
		if strings.Contains(strings.ToLower(rec.Data), needle) {
			return rec.Data, true
		}
	}
	return "", false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
