// Package kvstore persists small per-shopper documents (cart blob, auth token,
// checkout state) under namespaced string keys.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is the string key-value surface the storefront persists through.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

// Scoped binds a store to a key prefix so callers work with short names.
type Scoped struct {
	store  Store
	prefix string
	ttl    time.Duration
}

// NewScoped returns a view of store where every key is prefix + ":" + name.
func NewScoped(store Store, prefix string, ttl time.Duration) *Scoped {
	return &Scoped{store: store, prefix: prefix, ttl: ttl}
}

func (s *Scoped) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + ":" + name
}

func (s *Scoped) Get(ctx context.Context, name string) (string, error) {
	return s.store.Get(ctx, s.key(name))
}

func (s *Scoped) Set(ctx context.Context, name, value string) error {
	return s.store.Set(ctx, s.key(name), value, s.ttl)
}

func (s *Scoped) Del(ctx context.Context, names ...string) error {
	keys := make([]string, 0, len(names))
	for _, name := range names {
		keys = append(keys, s.key(name))
	}
	return s.store.Del(ctx, keys...)
}
