// Package events fans template lifecycle events out over redis pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/GoSim-25-26J-441/template-registry/internal/logging"
	"github.com/GoSim-25-26J-441/template-registry/internal/templates/domain"
)

const channelPrefix = "tpl:events:"

// Channel returns the pub/sub channel for one template.
func Channel(projectID, templateID string) string {
	return fmt.Sprintf("%s%s:%s", channelPrefix, projectID, templateID)
}

// RedisPublisher publishes events to per-template channels.
type RedisPublisher struct {
	client *redis.Client
}

var _ domain.EventPublisher = (*RedisPublisher)(nil)

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, Channel(event.ProjectID, event.TemplateID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe streams events for one template until ctx is done. The returned
// channel is closed when the subscription ends.
func (p *RedisPublisher) Subscribe(ctx context.Context, projectID, templateID string) (<-chan domain.Event, error) {
	sub := p.client.Subscribe(ctx, Channel(projectID, templateID))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan domain.Event, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event domain.Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					logging.Op(ctx, "subscribe_events").WithError(err).Warn("dropping malformed event")
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Nop discards events. Used when redis is not configured.
type Nop struct{}

func (Nop) Publish(context.Context, domain.Event) error { return nil }
