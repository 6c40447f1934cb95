package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"arkv/internal/platform/kafka/consumer"
	audit "arkv/pkg/platform/audit"
	"arkv/pkg/platform/audit/store/postgres"

	"github.com/google/uuid"
)

// EventStore materializes relayed events for querying.
type EventStore interface {
	AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error
}

// Materializer writes audit topic messages into the audit_events table.
// Redelivered messages are absorbed by the store's idempotent insert.
type Materializer struct {
	store  EventStore
	logger *slog.Logger
	now    func() time.Time
}

func NewMaterializer(store EventStore, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Handle stores one audit event. Malformed messages are logged and
// acknowledged; store failures are returned for retry.
func (h *Materializer) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, err := uuid.Parse(string(msg.Key))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to parse audit event ID",
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}

	var payload postgres.Payload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.ErrorContext(ctx, "failed to unmarshal audit payload",
			"event_id", eventID,
			"error", err,
		)
		return nil
	}
	if payload.Action == "" {
		h.logger.ErrorContext(ctx, "audit event missing action", "event_id", eventID)
		return nil
	}

	event := payload.Event()
	if event.Timestamp.IsZero() {
		event.Timestamp = h.now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}

	if err := h.store.AppendWithID(ctx, eventID, event); err != nil {
		return fmt.Errorf("store audit event: %w", err)
	}

	h.logger.DebugContext(ctx, "stored audit event",
		"event_id", eventID,
		"action", event.Action,
		"subject", event.Subject,
	)
	return nil
}
