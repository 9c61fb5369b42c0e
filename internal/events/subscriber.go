package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Handler processes a delivered event. Handlers must tolerate duplicate
// delivery; invalidation handlers are naturally idempotent.
type Handler func(ctx context.Context, ev Event) error

// Subscriber runs as a long-lived background task per service process,
// consuming events matched by its channel patterns.
type Subscriber struct {
	client   *redis.Client
	logger   *slog.Logger
	patterns []string
	handler  Handler
}

// NewSubscriber constructs a Subscriber bound to the given patterns.
func NewSubscriber(client *redis.Client, logger *slog.Logger, handler Handler, patterns ...string) *Subscriber {
	return &Subscriber{client: client, logger: logger, patterns: patterns, handler: handler}
}

// Run consumes events until the context is cancelled. Decode failures
// and handler errors are logged and the loop continues; request
// handling never depends on this goroutine.
func (s *Subscriber) Run(ctx context.Context) error {
	if s == nil || s.client == nil || s.handler == nil {
		return nil
	}
	pubsub := s.client.PSubscribe(ctx, s.patterns...)
	defer func() { _ = pubsub.Close() }()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				if s.logger != nil {
					s.logger.Warn("event decode failed", slog.String("channel", msg.Channel), slog.Any("error", err))
				}
				continue
			}
			if err := s.handler(ctx, ev); err != nil && s.logger != nil {
				s.logger.Warn("event handler failed",
					slog.String("event_type", ev.EventType),
					slog.String("user_id", ev.UserID),
					slog.Any("error", err))
			}
		}
	}
}

// Invalidator is an interface over the permission cache so the
// subscriber package does not depend on the cache implementation.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// InvalidateOnAuthEvent returns the standard handler wired into every
// non-auth service: drop the principal's cache entry unconditionally
// and let the next read repopulate it. No partial updates.
func InvalidateOnAuthEvent(cache Invalidator, logger *slog.Logger) Handler {
	return func(ctx context.Context, ev Event) error {
		if ev.UserID == "" {
			return nil
		}
		if err := cache.Invalidate(ctx, ev.UserID); err != nil {
			return err
		}
		if logger != nil {
			logger.Info("permission cache invalidated",
				slog.String("event_type", ev.EventType),
				slog.String("user_id", ev.UserID))
		}
		return nil
	}
}
