package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	audit "arkv/pkg/platform/audit"
	txcontext "arkv/pkg/platform/tx"

	"github.com/google/uuid"
)

// Store implements audit.Store using the transactional outbox pattern.
// Append writes to the outbox inside the caller's transaction when one is in
// the context; the relay publishes outbox rows to Kafka and the consumer
// materializes them into audit_events, which the List methods read.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Payload is the JSON document carried in the outbox and on the audit topic.
type Payload struct {
	ID            string `json:"ID"`
	Category      string `json:"Category"`
	Timestamp     string `json:"Timestamp"`
	Subject       string `json:"Subject"`
	Action        string `json:"Action"`
	Domain        string `json:"Domain,omitempty"`
	EntityName    string `json:"EntityName,omitempty"`
	TransactionID string `json:"TransactionID,omitempty"`
	Decision      string `json:"Decision,omitempty"`
	Reason        string `json:"Reason,omitempty"`
	RequestID     string `json:"RequestID,omitempty"`
	ActorID       string `json:"ActorID,omitempty"`
	ClientSummary string `json:"ClientSummary,omitempty"`
	IP            string `json:"IP,omitempty"`
}

// NewPayload converts an event into its wire form.
func NewPayload(eventID uuid.UUID, event audit.Event) Payload {
	return Payload{
		ID:            eventID.String(),
		Category:      string(audit.AuditEvent(event.Action).Category()),
		Timestamp:     event.Timestamp.UTC().Format(time.RFC3339Nano),
		Subject:       event.Subject,
		Action:        event.Action,
		Domain:        event.Domain,
		EntityName:    event.EntityName,
		TransactionID: event.TransactionID,
		Decision:      event.Decision,
		Reason:        event.Reason,
		RequestID:     event.RequestID,
		ActorID:       event.ActorID,
		ClientSummary: event.ClientSummary,
		IP:            event.IP,
	}
}

// Event converts the wire form back into an event. An unparsable timestamp
// yields the zero time.
func (p Payload) Event() audit.Event {
	ts, _ := time.Parse(time.RFC3339Nano, p.Timestamp)
	return audit.Event{
		Category:      audit.EventCategory(p.Category),
		Timestamp:     ts,
		Subject:       p.Subject,
		Action:        p.Action,
		Domain:        p.Domain,
		EntityName:    p.EntityName,
		TransactionID: p.TransactionID,
		Decision:      p.Decision,
		Reason:        p.Reason,
		RequestID:     p.RequestID,
		ActorID:       p.ActorID,
		ClientSummary: p.ClientSummary,
		IP:            p.IP,
	}
}

// Append writes an audit event to the outbox table for Kafka publishing.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()
	payloadBytes, err := json.Marshal(NewPayload(eventID, event))
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	aggregateType := "notarization"
	aggregateID := event.Subject
	if aggregateID == "" {
		aggregateType = "audit"
		aggregateID = eventID.String()
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		eventID,
		aggregateType,
		aggregateID,
		event.Action,
		payloadBytes,
		s.now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// OutboxEntry is an unpublished outbox row.
type OutboxEntry struct {
	ID          uuid.UUID
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

// DrainOutbox locks up to limit unpublished entries, hands them to publish
// and marks them published if publish succeeds. Concurrent relays skip rows
// another relay holds. It returns the number of entries published.
func (s *Store) DrainOutbox(ctx context.Context, limit int, publish func(context.Context, []OutboxEntry) error) (int, error) {
	var n int
	err := txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		rows, err := s.execer(ctx).QueryContext(ctx, `
			SELECT id, aggregate_id, event_type, payload, created_at
			FROM outbox
			WHERE published_at IS NULL
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		`, limit)
		if err != nil {
			return fmt.Errorf("query outbox: %w", err)
		}
		var entries []OutboxEntry
		for rows.Next() {
			var e OutboxEntry
			if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
				rows.Close()
				return fmt.Errorf("scan outbox entry: %w", err)
			}
			entries = append(entries, e)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate outbox: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}

		if err := publish(ctx, entries); err != nil {
			return err
		}

		publishedAt := s.now()
		for _, e := range entries {
			if _, err := s.execer(ctx).ExecContext(ctx,
				`UPDATE outbox SET published_at = $2 WHERE id = $1`, e.ID, publishedAt); err != nil {
				return fmt.Errorf("mark outbox entry published: %w", err)
			}
		}
		n = len(entries)
		return nil
	})
	return n, err
}

// AppendWithID inserts an audit event into the audit_events table with a specific ID.
// Used by the Kafka consumer to materialize events for querying.
// This is idempotent - duplicate inserts are ignored via ON CONFLICT DO NOTHING.
func (s *Store) AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error {
	query := `
		INSERT INTO audit_events (
			id, category, timestamp, subject, action, domain, entity_name,
			transaction_id, decision, reason, request_id, actor_id,
			client_summary, ip
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		eventID,
		string(event.Category),
		event.Timestamp,
		event.Subject,
		event.Action,
		event.Domain,
		event.EntityName,
		event.TransactionID,
		event.Decision,
		event.Reason,
		event.RequestID,
		event.ActorID,
		event.ClientSummary,
		event.IP,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

const selectEvents = `
	SELECT category, timestamp, subject, action, domain, entity_name,
	       transaction_id, decision, reason, request_id, actor_id,
	       client_summary, ip
	FROM audit_events`

// ListBySubject returns a fingerprint's trail, oldest first.
func (s *Store) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, selectEvents+`
		WHERE subject = $1
		ORDER BY timestamp ASC
	`, subject)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, selectEvents+`
		ORDER BY timestamp DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	events := []audit.Event{}
	for rows.Next() {
		var (
			category string
			event    audit.Event
		)
		err := rows.Scan(
			&category,
			&event.Timestamp,
			&event.Subject,
			&event.Action,
			&event.Domain,
			&event.EntityName,
			&event.TransactionID,
			&event.Decision,
			&event.Reason,
			&event.RequestID,
			&event.ActorID,
			&event.ClientSummary,
			&event.IP,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
