package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func TestRedisStoreRoundTripAndExpiry(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "sales:all:page_size:10", []byte(`{"data":[]}`), 600*time.Second))

	val, ok, err := store.Get(ctx, "sales:all:page_size:10")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"data":[]}`, string(val))
	assert.Equal(t, 600*time.Second, mr.TTL("sales:all:page_size:10"))

	mr.FastForward(601 * time.Second)

	_, ok, err = store.Get(ctx, "sales:all:page_size:10")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreMissAndDelete(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, store.Delete(ctx, "k"))

	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStorePing(t *testing.T) {
	store, _ := newTestRedisStore(t)
	require.NoError(t, store.Ping(context.Background()))
}
