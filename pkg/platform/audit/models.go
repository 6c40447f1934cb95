package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// Categories drive retention and routing downstream of the outbox.
type EventCategory string

const (
	// CategoryLedger covers anchor submissions and their resolution. These are
	// the durable record of what was committed on-chain and by whom.
	CategoryLedger EventCategory = "ledger"

	// CategoryAttestation covers DNS ownership checks.
	CategoryAttestation EventCategory = "attestation"

	// CategoryOperations covers routine activity useful for debugging.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// Subject is the fingerprint the event concerns.
	Subject       string
	Action        string
	Domain        string
	EntityName    string
	TransactionID string
	Decision      string
	Reason        string
	RequestID     string
	// ActorID is the signer address or callback principal that caused the event.
	ActorID string
	// ClientSummary is a short browser/OS description of the caller.
	ClientSummary string
	IP            string
}

type AuditEvent string

const (
	EventNotarizationCreated AuditEvent = "notarization_created"

	EventAnchorSubmitted AuditEvent = "anchor_submitted"
	EventAnchorRejected  AuditEvent = "anchor_rejected"
	EventAnchorConfirmed AuditEvent = "anchor_confirmed"
	EventAnchorFailed    AuditEvent = "anchor_failed"

	EventAttestationChecked     AuditEvent = "attestation_checked"
	EventAttestationUnavailable AuditEvent = "attestation_unavailable"

	EventProviderProbed AuditEvent = "provider_probed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventAnchorSubmitted: CategoryLedger,
	EventAnchorRejected:  CategoryLedger,
	EventAnchorConfirmed: CategoryLedger,
	EventAnchorFailed:    CategoryLedger,

	EventAttestationChecked:     CategoryAttestation,
	EventAttestationUnavailable: CategoryAttestation,

	EventNotarizationCreated: CategoryOperations,
	EventProviderProbed:      CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
