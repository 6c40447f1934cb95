package consumer

import (
	"context"
	"log/slog"
	"sync/atomic"

	"arkv/internal/platform/kafka/consumer"
)

// TopicHandler processes one message of a topic.
type TopicHandler interface {
	Handle(ctx context.Context, msg *consumer.Message) error
}

// HandlerFunc adapts a plain function to TopicHandler.
type HandlerFunc func(ctx context.Context, msg *consumer.Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *consumer.Message) error { return f(ctx, msg) }

// Router dispatches by topic. Messages on topics without a route are
// acknowledged and counted so they are not redelivered forever.
type Router struct {
	routes  map[string]TopicHandler
	skipped atomic.Int64
	logger  *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{routes: map[string]TopicHandler{}, logger: logger}
}

// Register routes topic to h. Routes must be registered before the consumer
// starts polling.
func (r *Router) Register(topic string, h TopicHandler) *Router {
	r.routes[topic] = h
	return r
}

// Skipped reports how many messages had no route.
func (r *Router) Skipped() int64 { return r.skipped.Load() }

func (r *Router) Handle(ctx context.Context, msg *consumer.Message) error {
	if h, ok := r.routes[msg.Topic]; ok {
		return h.Handle(ctx, msg)
	}
	r.skipped.Add(1)
	r.logger.Warn("audit message on unrouted topic dropped", "topic", msg.Topic, "key", string(msg.Key), "offset", msg.Offset)
	return nil
}
