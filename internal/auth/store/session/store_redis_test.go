package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xpdash/pkg/platform/sentinel"
)

func newMiniredisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, ttl), mr
}

func TestRedisStore_SaveLoad(t *testing.T) {
	store, mr := newMiniredisStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sid-1", "a.b.c"))

	token, err := store.Load(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "a.b.c", token)

	got, err := mr.Get("session:sid-1:jwt")
	require.NoError(t, err)
	assert.Equal(t, "a.b.c", got)
	assert.Equal(t, time.Hour, mr.TTL("session:sid-1:jwt"))
}

func TestRedisStore_Expiry(t *testing.T) {
	store, mr := newMiniredisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sid", "a.b.c"))
	mr.FastForward(2 * time.Minute)

	_, err := store.Load(ctx, "sid")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestRedisStore_Delete(t *testing.T) {
	store, _ := newMiniredisStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sid", "a.b.c"))
	require.NoError(t, store.Delete(ctx, "sid"))
	require.ErrorIs(t, store.Delete(ctx, "sid"), sentinel.ErrNotFound)

	tokens := Bind(store, "sid")
	require.NoError(t, tokens.Clear(ctx))
	token, err := tokens.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestRedisStore_ConnectionError(t *testing.T) {
	store, mr := newMiniredisStore(t, 0)
	mr.Close()

	_, err := store.Load(context.Background(), "sid")
	require.Error(t, err)
	assert.NotErrorIs(t, err, sentinel.ErrNotFound)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}
