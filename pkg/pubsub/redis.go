package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// RedisPublisher publishes completion events over Redis pub/sub. The caller
// owns the client lifecycle.
type RedisPublisher struct {
	client goredis.Cmdable
}

// NewRedisPublisher wraps an existing Redis client.
func NewRedisPublisher(client goredis.Cmdable) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// PublishRunCompleted sends the event on the run's channel as JSON.
func (p *RedisPublisher) PublishRunCompleted(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("pubsub: marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, ChannelFor(event.RunID), payload).Err(); err != nil {
		return fmt.Errorf("pubsub: publish %s: %w", ChannelFor(event.RunID), err)
	}
	return nil
}
