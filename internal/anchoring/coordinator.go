// Package anchoring commits fingerprints to the ledger through a signing
// collaborator and tracks each anchor transaction to its final state.
package anchoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"arkv/internal/anchoring/metrics"
	id "arkv/pkg/domain"
	"arkv/pkg/platform/sentinel"
)

// DefaultComment is attached to the anchoring clause.
const DefaultComment = "Notarize document hash on TestNet"

// Coordinator builds and submits anchoring transactions. The store's claim is
// the serialization point: at most one Anchor call per fingerprint runs at a
// time, and a fingerprint with a pending or confirmed transaction is never
// re-anchored.
type Coordinator struct {
	store     Store
	logger    *slog.Logger
	metrics   *metrics.Metrics
	recipient common.Address
	comment   string
	now       func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithRecipient sets the clause recipient. Defaults to the zero address.
func WithRecipient(addr common.Address) Option {
	return func(c *Coordinator) {
		c.recipient = addr
	}
}

// WithComment sets the clause comment shown by signers.
func WithComment(comment string) Option {
	return func(c *Coordinator) {
		c.comment = comment
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Coordinator.
func New(store Store, opts ...Option) (*Coordinator, error) {
	if store == nil {
		return nil, fmt.Errorf("anchor store is required")
	}
	c := &Coordinator{
		store:   store,
		logger:  slog.Default(),
		comment: DefaultComment,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Clause returns the ledger call that commits fp: data is the raw digest,
// value is the fee.
func (c *Coordinator) Clause(fp id.Fingerprint, fee FeePolicy) Clause {
	return Clause{
		To:      c.recipient,
		Value:   fee.Amount(),
		Data:    fp.Bytes(),
		Comment: c.comment,
	}
}

// Anchor submits fp through signer and records a pending transaction.
//
// A fingerprint with an active transaction fails with *ConflictError
// (ErrAlreadyPending / ErrAlreadyConfirmed). A signer rejection fails with
// *SignerError and leaves no transaction behind.
func (c *Coordinator) Anchor(ctx context.Context, signer Signer, fp id.Fingerprint, fee FeePolicy) (*Transaction, error) {
	if signer == nil {
		return nil, SubmissionFailed("no signer connected", nil)
	}
	if fp.IsNil() {
		return nil, fmt.Errorf("fingerprint is required")
	}

	existing, err := c.store.Claim(ctx, fp, c.now())
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			if existing == nil {
				existing = &Transaction{Fingerprint: fp, Status: StatusSubmitting}
			}
			conflict := &ConflictError{Existing: existing.Clone()}
			c.metrics.IncrementSubmission(outcomeOf(conflict))
			c.logger.InfoContext(ctx, "anchor rejected, fingerprint already anchored",
				"fingerprint", fp,
				"status", existing.Status,
				"tx_id", existing.TransactionID,
			)
			return nil, conflict
		}
		return nil, fmt.Errorf("claim fingerprint: %w", err)
	}

	start := time.Now()
	txID, err := signer.SignTransaction(ctx, []Clause{c.Clause(fp, fee)})
	c.metrics.ObserveSign(time.Since(start))
	if err == nil && txID == "" {
		err = SubmissionFailed("signer returned no transaction id", nil)
	}
	if err != nil {
		c.release(ctx, fp)
		signErr := classify(err)
		c.metrics.IncrementSubmission(outcome(signErr.Kind))
		c.logger.WarnContext(ctx, "anchor submission rejected",
			"fingerprint", fp,
			"kind", outcome(signErr.Kind),
			"error", err,
		)
		return nil, signErr
	}

	tx := &Transaction{
		Fingerprint:   fp,
		TransactionID: txID,
		FeePaid:       fee.Amount(),
		SubmittedAt:   c.now(),
		Status:        StatusPending,
	}
	if err := c.store.Commit(ctx, tx); err != nil {
		c.logger.ErrorContext(ctx, "anchor submitted but not recorded",
			"fingerprint", fp,
			"tx_id", txID,
			"error", err,
		)
		c.release(ctx, fp)
		return nil, fmt.Errorf("record anchor %s: %w", txID, err)
	}

	c.metrics.IncrementSubmission(string(StatusPending))
	c.logger.InfoContext(ctx, "anchor submitted",
		"fingerprint", fp,
		"tx_id", txID,
		"fee", tx.FeePaid.String(),
	)
	return tx.Clone(), nil
}

// release drops a claim even if ctx was cancelled mid-submission.
func (c *Coordinator) release(ctx context.Context, fp id.Fingerprint) {
	if err := c.store.Release(context.WithoutCancel(ctx), fp); err != nil {
		c.logger.ErrorContext(ctx, "failed to release anchor claim",
			"fingerprint", fp,
			"error", err,
		)
	}
}

// Confirm moves a pending transaction to confirmed. Confirming an already
// confirmed transaction is a no-op.
func (c *Coordinator) Confirm(ctx context.Context, txID string) (*Transaction, error) {
	return c.resolve(ctx, txID, StatusConfirmed, "")
}

// Fail moves a pending transaction to failed, freeing its fingerprint for a
// new anchor. Failing an already failed transaction is a no-op.
func (c *Coordinator) Fail(ctx context.Context, txID, reason string) (*Transaction, error) {
	return c.resolve(ctx, txID, StatusFailed, reason)
}

func (c *Coordinator) resolve(ctx context.Context, txID string, status Status, reason string) (*Transaction, error) {
	if txID == "" {
		return nil, fmt.Errorf("transaction id is required")
	}
	tx, err := c.store.Resolve(ctx, txID, status, reason, c.now())
	switch {
	case err == nil:
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, fmt.Errorf("%w: tx %s", ErrNotFound, txID)
	case errors.Is(err, sentinel.ErrInvalidState) && tx != nil:
		if tx.Status == status {
			return tx.Clone(), nil
		}
		return nil, fmt.Errorf("%w: tx %s is %s", ErrInvalidTransition, txID, tx.Status)
	default:
		return nil, fmt.Errorf("resolve anchor %s: %w", txID, err)
	}

	c.metrics.IncrementTransition(string(status))
	c.logger.InfoContext(ctx, "anchor resolved",
		"fingerprint", tx.Fingerprint,
		"tx_id", txID,
		"status", status,
		"reason", reason,
	)
	return tx.Clone(), nil
}

// Get returns the current transaction for fp.
func (c *Coordinator) Get(ctx context.Context, fp id.Fingerprint) (*Transaction, error) {
	tx, err := c.store.FindByFingerprint(ctx, fp)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, fp)
		}
		return nil, fmt.Errorf("find anchor: %w", err)
	}
	return tx.Clone(), nil
}

// GetByTransactionID returns the transaction with the ledger id txID.
func (c *Coordinator) GetByTransactionID(ctx context.Context, txID string) (*Transaction, error) {
	tx, err := c.store.FindByTransactionID(ctx, txID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, fmt.Errorf("%w: tx %s", ErrNotFound, txID)
		}
		return nil, fmt.Errorf("find anchor: %w", err)
	}
	return tx.Clone(), nil
}

// Pending lists transactions awaiting confirmation.
func (c *Coordinator) Pending(ctx context.Context) ([]*Transaction, error) {
	txs, err := c.store.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending anchors: %w", err)
	}
	out := make([]*Transaction, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.Clone())
	}
	return out, nil
}

func outcomeOf(err *ConflictError) string {
	if errors.Is(err, ErrAlreadyConfirmed) {
		return "already_confirmed"
	}
	return "already_pending"
}
