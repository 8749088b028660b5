package pubsub

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisClient struct
type RedisClient struct {
	conn *redis.Client
}

// NewRedis returns a redis pubsub publisher
func NewRedis(rdb *redis.Client) *RedisClient {
	return &RedisClient{rdb}
}

// Publish publishes a new topic payload
func (rdb *RedisClient) Publish(ctx context.Context, topic string, payload Event) error {
	msg, err := payload.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", topic, err)
	}
	return rdb.conn.Publish(ctx, topic, []byte(msg)).Err()
}
