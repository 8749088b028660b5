package redis

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// Open opens a connection to redis and returns it.
// When password is set, username and password override the credentials in url.
func Open(ctx context.Context, url, username, password string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if password != "" {
		opts.Username = username
		opts.Password = password
	}
	rdb := redis.NewClient(opts)
	if err := Status(ctx, rdb); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// Status returns nil of redis status is ok. Otherwise a redis status err
func Status(ctx context.Context, rdb *redis.Client) error {
	if pingCmd := rdb.Ping(ctx); pingCmd.Err() != nil {
		return pingCmd.Err()
	}
	return nil
}

// Pinger adapts a redis client to the health checker.
type Pinger struct {
	Client *redis.Client
}

// Ping checks the redis connection.
func (p Pinger) Ping(ctx context.Context) error {
	return Status(ctx, p.Client)
}
