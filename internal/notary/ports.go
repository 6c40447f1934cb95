package notary

import (
	"context"

	"arkv/internal/anchoring"
	"arkv/internal/attestation"
	"arkv/internal/index"
	id "arkv/pkg/domain"
	"arkv/pkg/platform/audit"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Anchorer,Index,Attester,ContentStore,AuditPublisher,NetworkChecker

// Anchorer commits fingerprints to the ledger and resolves their transactions.
type Anchorer interface {
	Anchor(ctx context.Context, signer anchoring.Signer, fp id.Fingerprint, fee anchoring.FeePolicy) (*anchoring.Transaction, error)
	Confirm(ctx context.Context, txID string) (*anchoring.Transaction, error)
	Fail(ctx context.Context, txID, reason string) (*anchoring.Transaction, error)
}

// Index owns notarization records.
type Index interface {
	Insert(ctx context.Context, r *index.Record) error
	Update(ctx context.Context, fp id.Fingerprint, patch index.Patch) (*index.Record, error)
	Get(ctx context.Context, fp id.Fingerprint) (*index.Record, error)
	Query(ctx context.Context, qt id.QueryType, q string) ([]*index.Record, error)
	ListByDomain(ctx context.Context, name id.DomainName) ([]*index.Record, error)
}

// Attester checks DNS ownership proofs.
type Attester interface {
	Check(ctx context.Context, name id.DomainName, fp id.Fingerprint) (attestation.Attestation, error)
	Recheck(ctx context.Context, name id.DomainName, fp id.Fingerprint) (attestation.Attestation, error)
}

// ContentStore persists file payloads.
type ContentStore interface {
	Put(ctx context.Context, data []byte, metadata map[string]string) (string, error)
}

// AuditPublisher records notarization activity.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// NetworkChecker reports which ledger network the signer submits to.
type NetworkChecker interface {
	ChainTag(ctx context.Context) (byte, error)
}
