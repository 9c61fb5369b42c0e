package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Publisher broadcasts events on their routing key. Publish happens
// after the originating store mutation commits; a publish failure is
// logged and never rolls the mutation back. A dropped event leaves
// stale cache entries until their TTL expires, which bounds the blast
// radius.
type Publisher struct {
	client *redis.Client
	logger *slog.Logger
}

// NewPublisher constructs a Publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

// Publish sends the event on the channel named by its routing key.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	if p == nil || p.client == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: encode %s: %w", ev.EventType, err)
	}
	if err := p.client.Publish(ctx, ev.EventType, payload).Err(); err != nil {
		return fmt.Errorf("events: publish %s: %w", ev.EventType, err)
	}
	return nil
}

// PublishBestEffort publishes and logs any failure instead of returning
// it. Call sites use this after a committed graph mutation.
func (p *Publisher) PublishBestEffort(ctx context.Context, ev Event) {
	if err := p.Publish(ctx, ev); err != nil && p.logger != nil {
		p.logger.Warn("event publish failed",
			slog.String("event_type", ev.EventType),
			slog.String("user_id", ev.UserID),
			slog.Any("error", err))
	}
}
