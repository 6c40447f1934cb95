package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arkv/internal/platform/kafka/consumer"
	audit "arkv/pkg/platform/audit"
	"arkv/pkg/platform/audit/store/postgres"
)

type recordingStore struct {
	ids    []uuid.UUID
	events []audit.Event
	err    error
}

func (r *recordingStore) AppendWithID(_ context.Context, id uuid.UUID, e audit.Event) error {
	if r.err != nil {
		return r.err
	}
	r.ids = append(r.ids, id)
	r.events = append(r.events, e)
	return nil
}

func message(t *testing.T, key string, p postgres.Payload) *consumer.Message {
	t.Helper()
	b, err := json.Marshal(p)
	require.NoError(t, err)
	return &consumer.Message{Topic: "arkv.audit", Key: []byte(key), Value: b}
}

func TestMaterializer(t *testing.T) {
	ctx := context.Background()
	eventID := uuid.New()
	ts := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	payload := postgres.NewPayload(eventID, audit.Event{
		Timestamp:     ts,
		Subject:       "ab12",
		Action:        string(audit.EventAnchorConfirmed),
		TransactionID: "0xabc",
	})

	t.Run("stores a well-formed event", func(t *testing.T) {
		store := &recordingStore{}
		h := NewMaterializer(store, slog.Default())

		require.NoError(t, h.Handle(ctx, message(t, eventID.String(), payload)))
		require.Len(t, store.events, 1)
		assert.Equal(t, eventID, store.ids[0])
		assert.Equal(t, audit.CategoryLedger, store.events[0].Category)
		assert.Equal(t, "0xabc", store.events[0].TransactionID)
		assert.True(t, ts.Equal(store.events[0].Timestamp))
	})

	t.Run("malformed messages are acknowledged", func(t *testing.T) {
		store := &recordingStore{}
		h := NewMaterializer(store, slog.Default())

		assert.NoError(t, h.Handle(ctx, message(t, "not-a-uuid", payload)))
		assert.NoError(t, h.Handle(ctx, &consumer.Message{Key: []byte(eventID.String()), Value: []byte("{")}))
		assert.NoError(t, h.Handle(ctx, message(t, eventID.String(), postgres.Payload{Subject: "ab12"})))
		assert.Empty(t, store.events)
	})

	t.Run("store failures are returned for retry", func(t *testing.T) {
		boom := errors.New("db down")
		h := NewMaterializer(&recordingStore{err: boom}, slog.Default())
		assert.ErrorIs(t, h.Handle(ctx, message(t, eventID.String(), payload)), boom)
	})
}

func TestRouter(t *testing.T) {
	ctx := context.Background()
	store := &recordingStore{}
	var seen []string
	r := NewRouter(slog.Default()).
		Register("arkv.audit", NewMaterializer(store, slog.Default())).
		Register("arkv.audit.debug", HandlerFunc(func(_ context.Context, msg *consumer.Message) error {
			seen = append(seen, string(msg.Key))
			return nil
		}))

	eventID := uuid.New()
	p := postgres.NewPayload(eventID, audit.Event{Subject: "ab12", Action: string(audit.EventNotarizationCreated)})
	require.NoError(t, r.Handle(ctx, message(t, eventID.String(), p)))

	other := message(t, eventID.String(), p)
	other.Topic = "unknown"
	require.NoError(t, r.Handle(ctx, other))

	debug := message(t, "k-1", p)
	debug.Topic = "arkv.audit.debug"
	require.NoError(t, r.Handle(ctx, debug))

	assert.Len(t, store.events, 1)
	assert.Equal(t, []string{"k-1"}, seen)
	assert.EqualValues(t, 1, r.Skipped())
}
