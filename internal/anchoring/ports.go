package anchoring

import (
	"context"
	"time"

	id "arkv/pkg/domain"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Signer,Store,ReceiptSource

// Signer is the signing collaborator. It signs and submits ledger clauses
// and signs certificates. Rejections are reported as *SignerError.
type Signer interface {
	// SignTransaction signs and submits the clauses and returns the ledger
	// transaction id.
	SignTransaction(ctx context.Context, clauses []Clause) (string, error)
	// SignCertificate signs cert and returns the signer address.
	SignCertificate(ctx context.Context, cert Certificate) (string, error)
}

// Store persists anchor transactions, one per fingerprint.
//
// Claim and Commit together form the per-fingerprint serialization point:
// Claim atomically reserves a fingerprint (status submitting) unless it
// already has an active transaction, in which case it returns the existing
// transaction and sentinel.ErrConflict.
type Store interface {
	Claim(ctx context.Context, fp id.Fingerprint, at time.Time) (*Transaction, error)
	// Commit replaces a claim with a pending transaction. It returns
	// sentinel.ErrInvalidState when the fingerprint is not claimed.
	Commit(ctx context.Context, tx *Transaction) error
	// Release drops a claim. Non-claim records are left untouched.
	Release(ctx context.Context, fp id.Fingerprint) error
	// Resolve moves a pending transaction to status. A transaction that is
	// not pending is returned with sentinel.ErrInvalidState.
	Resolve(ctx context.Context, txID string, status Status, reason string, at time.Time) (*Transaction, error)
	FindByFingerprint(ctx context.Context, fp id.Fingerprint) (*Transaction, error)
	FindByTransactionID(ctx context.Context, txID string) (*Transaction, error)
	ListPending(ctx context.Context) ([]*Transaction, error)
}

// ReceiptSource reads transaction receipts from the ledger. A nil receipt
// with a nil error means the transaction is not yet included.
type ReceiptSource interface {
	Receipt(ctx context.Context, txID string) (*Receipt, error)
}
