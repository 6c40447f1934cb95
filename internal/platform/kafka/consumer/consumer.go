// Package consumer reads Kafka topics in a consumer group and commits offsets
// only after the handler has seen each record.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is a consumed record.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Handler processes one message. A returned error is retried before the
// message is skipped.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

type Consumer struct {
	client     *kgo.Client
	logger     *slog.Logger
	maxRetries int
	backoff    time.Duration
}

type Option func(*Consumer)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// WithRetries sets how many times a failing message is retried.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *Consumer) {
		if n >= 0 {
			c.maxRetries = n
		}
		c.backoff = backoff
	}
}

// New joins group and subscribes to topics.
func New(brokers []string, group string, topics []string, opts ...Option) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topics...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	c := &Consumer{
		client:     client,
		logger:     slog.Default(),
		maxRetries: 3,
		backoff:    500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run polls until ctx is cancelled or the client is closed.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		var handled []*kgo.Record
		fetches.EachRecord(func(r *kgo.Record) {
			if ctx.Err() != nil {
				return
			}
			if c.handle(ctx, handler, r) {
				handled = append(handled, r)
			}
		})
		if len(handled) == 0 {
			continue
		}
		if err := c.client.CommitRecords(ctx, handled...); err != nil {
			c.logger.ErrorContext(ctx, "failed to commit offsets", "error", err)
		}
	}
}

// handle reports whether the record may be committed. It is false only when
// ctx ended before the handler finished.
func (c *Consumer) handle(ctx context.Context, handler Handler, r *kgo.Record) bool {
	msg := &Message{
		Topic:     r.Topic,
		Partition: r.Partition,
		Offset:    r.Offset,
		Key:       r.Key,
		Value:     r.Value,
		Timestamp: r.Timestamp,
	}
	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err = handler.Handle(ctx, msg); err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(c.backoff):
			}
		}
	}
	c.logger.ErrorContext(ctx, "dropping message after retries",
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
		"error", err,
	)
	return true
}

func (c *Consumer) Close() {
	c.client.Close()
}
