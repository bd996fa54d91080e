package kafka

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
)

// EnvelopeHandler processes one decoded event.
type EnvelopeHandler func(ctx context.Context, env orders.Envelope) error

// Router decodes envelopes and hands them to the handler registered for
// their type. Events this instance produced itself are skipped.
type Router struct {
	Self string
	// Dedup reports whether an event id is seen for the first time.
	Dedup func(ctx context.Context, eventID string) (bool, error)
	Log   *slog.Logger

	routes   map[string]EnvelopeHandler
	fallback EnvelopeHandler
}

func NewRouter(self string, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{Self: self, Log: log, routes: map[string]EnvelopeHandler{}}
}

func (r *Router) On(eventType string, h EnvelopeHandler) { r.routes[eventType] = h }

// Default handles every type without its own route.
func (r *Router) Default(h EnvelopeHandler) { r.fallback = h }

// Handle is a consumer Handler. Undecodable messages are logged and
// committed so they do not block the partition.
func (r *Router) Handle(ctx context.Context, m kafka.Message) error {
	env, err := DecodeEnvelope(m.Value)
	if err != nil {
		r.Log.Warn("dropping malformed event", "offset", m.Offset, "error", err)
		return nil
	}
	if env.Producer == r.Self {
		return nil
	}
	if r.Dedup != nil {
		first, err := r.Dedup(ctx, env.EventID)
		if err != nil {
			r.Log.Warn("event dedup unavailable", "event_id", env.EventID, "error", err)
		} else if !first {
			return nil
		}
	}
	h, ok := r.routes[env.EventType]
	if !ok {
		h = r.fallback
	}
	if h == nil {
		return nil
	}
	return h(ctx, env)
}
