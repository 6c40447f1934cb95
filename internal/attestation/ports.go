package attestation

import "context"

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Resolver

// Resolver answers TXT queries. Implementations return ErrNameNotFound for
// NXDOMAIN, an empty slice for an empty answer, and any other error for
// resolver faults.
type Resolver interface {
	ResolveTXT(ctx context.Context, name string) ([]TXTRecord, error)
}
