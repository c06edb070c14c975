package alert

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// RedisChannel publishes alerts as JSON on a Redis pub/sub channel.
type RedisChannel struct {
	client  goredis.UniversalClient
	channel string
}

// NewRedisChannel creates a Redis channel on an existing client.
func NewRedisChannel(client goredis.UniversalClient, channel string) *RedisChannel {
	return &RedisChannel{client: client, channel: channel}
}

func (r *RedisChannel) Name() string {
	return "redis"
}

func (r *RedisChannel) Send(ctx context.Context, a Alert) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish alert to redis: %w", err)
	}
	return nil
}
