package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRedisQueueIsFIFO(t *testing.T) {
	client, mr := newRedis(t)
	q := NewRedisQueue(client, "default")
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, Envelope{RunID: "1", Job: "admin", Date: "2025-10-26"}))
	require.NoError(t, q.Push(ctx, Envelope{RunID: "2", Job: "seller"}))

	list, err := mr.List("queue:default")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	first, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", first.RunID)
	assert.Equal(t, "2025-10-26", first.Date)

	second, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2", second.RunID)
	assert.Equal(t, "seller", second.Job)
}

func TestRedisQueuePopStopsOnCancel(t *testing.T) {
	client, _ := newRedis(t)
	q := NewRedisQueue(client, "default")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisLockerIsExclusiveUntilReleased(t *testing.T) {
	client, mr := newRedis(t)
	l := NewRedisLocker(client)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "lock:admin", "run-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Acquire(ctx, "lock:admin", "run-2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// Only the owner may release.
	require.NoError(t, l.Release(ctx, "lock:admin", "run-2"))
	assert.True(t, mr.Exists("lock:admin"))

	require.NoError(t, l.Release(ctx, "lock:admin", "run-1"))
	assert.False(t, mr.Exists("lock:admin"))

	ok, err = l.Acquire(ctx, "lock:admin", "run-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockerExpires(t *testing.T) {
	client, mr := newRedis(t)
	l := NewRedisLocker(client)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "lock:seller", "run-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	ok, err = l.Acquire(ctx, "lock:seller", "run-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryQueue(t *testing.T) {
	q := NewMemoryQueue(2)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, Envelope{RunID: "1"}))
	env, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", env.RunID)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = q.Pop(cancelled)
	assert.ErrorIs(t, err, context.Canceled)

	q.Close()
	q.Close()
	assert.ErrorIs(t, q.Push(ctx, Envelope{}), ErrClosed)
	_, err = q.Pop(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryLocker(t *testing.T) {
	l := NewMemoryLocker()
	now := time.Date(2025, 10, 26, 23, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := l.Acquire(ctx, "k", "a", time.Minute)
	assert.True(t, ok)
	ok, _ = l.Acquire(ctx, "k", "b", time.Minute)
	assert.False(t, ok)

	require.NoError(t, l.Release(ctx, "k", "b"))
	ok, _ = l.Acquire(ctx, "k", "b", time.Minute)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = l.Acquire(ctx, "k", "b", time.Minute)
	assert.True(t, ok)
}
