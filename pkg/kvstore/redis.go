package kvstore

import (
	"context"
	"time"

	pkgredis "github.com/angelmondragon/storefront/pkg/redis"
)

// Redis adapts the shared redis client to the Store interface.
type Redis struct {
	client *pkgredis.Client
}

func NewRedis(client *pkgredis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key)
	if pkgredis.IsNil(err) {
		return "", ErrNotFound
	}
	return value, err
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl)
}

func (r *Redis) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...)
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}
