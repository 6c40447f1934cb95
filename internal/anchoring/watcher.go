package anchoring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"arkv/internal/anchoring/metrics"
)

const (
	defaultPollInterval = 10 * time.Second
	// defaultMaxPending outlives a 720 block transaction expiry at one
	// block per 10s.
	defaultMaxPending = 2*time.Hour + 10*time.Minute
)

// PendingLister lists transactions awaiting confirmation.
type PendingLister interface {
	Pending(ctx context.Context) ([]*Transaction, error)
}

// Resolver applies a final state to a pending anchor.
type Resolver interface {
	ConfirmAnchor(ctx context.Context, txID string) error
	FailAnchor(ctx context.Context, txID, reason string) error
}

// PollResult summarizes one watcher pass.
type PollResult struct {
	Confirmed int
	Failed    int
	Pending   int
	Errors    int
}

// Watcher polls ledger receipts for pending anchors and resolves them.
type Watcher struct {
	pending    PendingLister
	receipts   ReceiptSource
	resolver   Resolver
	interval   time.Duration
	maxPending time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithPollInterval sets how often receipts are polled.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithMaxPending sets how long a transaction may stay without a receipt
// before it is failed as expired.
func WithMaxPending(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.maxPending = d
		}
	}
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithWatcherMetrics sets the metrics collector.
func WithWatcherMetrics(m *metrics.Metrics) WatcherOption {
	return func(w *Watcher) {
		w.metrics = m
	}
}

// WithWatcherClock overrides the time source.
func WithWatcherClock(now func() time.Time) WatcherOption {
	return func(w *Watcher) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWatcher creates a receipt Watcher.
func NewWatcher(pending PendingLister, receipts ReceiptSource, resolver Resolver, opts ...WatcherOption) (*Watcher, error) {
	if pending == nil || receipts == nil || resolver == nil {
		return nil, fmt.Errorf("pending lister, receipt source and resolver are required")
	}
	w := &Watcher{
		pending:    pending,
		receipts:   receipts,
		resolver:   resolver,
		interval:   defaultPollInterval,
		maxPending: defaultMaxPending,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if _, err := w.Poll(ctx); err != nil {
			w.logger.ErrorContext(ctx, "anchor watcher poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll checks every pending anchor once. Per-transaction faults are logged
// and counted; only a failure to list pending anchors is returned.
func (w *Watcher) Poll(ctx context.Context) (PollResult, error) {
	w.metrics.IncrementPoll()

	txs, err := w.pending.Pending(ctx)
	if err != nil {
		return PollResult{}, err
	}
	w.metrics.SetPending(len(txs))

	var res PollResult
	for _, tx := range txs {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if err := w.check(ctx, tx, &res); err != nil {
			res.Errors++
			w.logger.WarnContext(ctx, "anchor receipt check failed",
				"fingerprint", tx.Fingerprint,
				"tx_id", tx.TransactionID,
				"error", err,
			)
		}
	}
	return res, nil
}

func (w *Watcher) check(ctx context.Context, tx *Transaction, res *PollResult) error {
	receipt, err := w.receipts.Receipt(ctx, tx.TransactionID)
	if err != nil {
		return fmt.Errorf("fetch receipt: %w", err)
	}

	switch {
	case receipt == nil && w.now().Sub(tx.SubmittedAt) > w.maxPending:
		if err := w.resolver.FailAnchor(ctx, tx.TransactionID, "expired without receipt"); err != nil {
			return err
		}
		res.Failed++
	case receipt == nil:
		res.Pending++
	case receipt.Reverted:
		if err := w.resolver.FailAnchor(ctx, tx.TransactionID, "transaction reverted"); err != nil {
			return err
		}
		res.Failed++
	default:
		if err := w.resolver.ConfirmAnchor(ctx, tx.TransactionID); err != nil {
			return err
		}
		res.Confirmed++
	}
	return nil
}
