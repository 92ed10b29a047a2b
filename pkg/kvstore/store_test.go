package kvstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgredis "github.com/angelmondragon/storefront/pkg/redis"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound), "expected ErrNotFound, got %v", err)

	require.NoError(t, store.Set(ctx, "cart", `{"items":[]}`, 0))
	got, err := store.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, `{"items":[]}`, got)

	require.NoError(t, store.Set(ctx, "cart", "v2", 0))
	got, err = store.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, "v2", got)

	require.NoError(t, store.Del(ctx, "cart", "never-set"))
	_, err = store.Get(ctx, "cart")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, store.Ping(ctx))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryStoreExpiry(t *testing.T) {
	mem := NewMemory()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mem.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, mem.Set(ctx, "token", "abc", time.Minute))
	now = now.Add(59 * time.Second)
	_, err := mem.Get(ctx, "token")
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = mem.Get(ctx, "token")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := pkgredis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	exerciseStore(t, NewRedis(client))
}

func TestScopedPrefixesKeys(t *testing.T) {
	mem := NewMemory()
	scoped := NewScoped(mem, "sf:session:abc", 0)
	ctx := context.Background()

	require.NoError(t, scoped.Set(ctx, "cart", "blob"))
	raw, err := mem.Get(ctx, "sf:session:abc:cart")
	require.NoError(t, err)
	assert.Equal(t, "blob", raw)

	got, err := scoped.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, "blob", got)

	require.NoError(t, scoped.Del(ctx, "cart"))
	_, err = mem.Get(ctx, "sf:session:abc:cart")
	assert.ErrorIs(t, err, ErrNotFound)
}
