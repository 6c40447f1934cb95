// Package relay publishes audit outbox rows to Kafka.
package relay

import (
	"context"
	"log/slog"
	"time"

	"arkv/internal/platform/kafka/producer"
	"arkv/pkg/platform/audit/store/postgres"
)

//go:generate mockgen -source=relay.go -destination=mocks/mocks.go -package=mocks Outbox,Producer

// Outbox hands out unpublished entries in a transaction.
type Outbox interface {
	DrainOutbox(ctx context.Context, limit int, publish func(context.Context, []postgres.OutboxEntry) error) (int, error)
}

// Producer publishes records.
type Producer interface {
	Publish(ctx context.Context, records ...producer.Record) error
}

type Relay struct {
	outbox   Outbox
	producer Producer
	topic    string
	batch    int
	interval time.Duration
	logger   *slog.Logger
}

type Option func(*Relay)

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func New(outbox Outbox, p Producer, topic string, opts ...Option) *Relay {
	r := &Relay{
		outbox:   outbox,
		producer: p,
		topic:    topic,
		batch:    100,
		interval: time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drains the outbox until ctx is cancelled. A full batch is followed
// immediately by another drain.
func (r *Relay) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		n, err := r.Drain(ctx)
		next := r.interval
		if err == nil && n == r.batch {
			next = 0
		}
		timer.Reset(next)
	}
}

// Drain publishes one batch. Entries stay unpublished if Kafka rejects them.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	n, err := r.outbox.DrainOutbox(ctx, r.batch, func(ctx context.Context, entries []postgres.OutboxEntry) error {
		records := make([]producer.Record, 0, len(entries))
		for _, e := range entries {
			records = append(records, producer.Record{
				Topic: r.topic,
				Key:   []byte(e.ID.String()),
				Value: e.Payload,
				Headers: map[string]string{
					"event_type":   e.EventType,
					"aggregate_id": e.AggregateID,
				},
			})
		}
		return r.producer.Publish(ctx, records...)
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "audit outbox relay failed", "error", err)
		return 0, err
	}
	if n > 0 {
		r.logger.DebugContext(ctx, "audit outbox relayed", "count", n)
	}
	return n, nil
}
