package builder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/GoSim-25-26J-441/template-registry/internal/templates/domain"
)

// RedisQueue pushes build jobs onto a redis list consumed by build workers.
type RedisQueue struct {
	client         *redis.Client
	queue          string
	callbackURL    string
	callbackSecret string
}

// NewRedisQueue creates a RedisQueue that LPUSHes onto queue.
func NewRedisQueue(client *redis.Client, queue, callbackURL, callbackSecret string) *RedisQueue {
	return &RedisQueue{
		client:         client,
		queue:          queue,
		callbackURL:    callbackURL,
		callbackSecret: callbackSecret,
	}
}

func (q *RedisQueue) StartBuild(ctx context.Context, t *domain.Template) error {
	payload, err := json.Marshal(NewJob(t, q.callbackURL, q.callbackSecret))
	if err != nil {
		return fmt.Errorf("failed to marshal build job: %w", err)
	}

	if err := q.client.LPush(ctx, q.queue, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue build: %w", err)
	}
	return nil
}
