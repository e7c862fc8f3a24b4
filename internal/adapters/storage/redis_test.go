package storage

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightline/portal-sessions/internal/ports"
)

func newRedisAdapter(t *testing.T, mr *miniredis.Miniredis, prefix string) *Redis {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, prefix)
}

func TestRedis_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	store := newRedisAdapter(t, mr, "portal:")

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	require.NoError(t, store.Set(ctx, "session.id", "sess-1"))
	assert.True(t, mr.Exists("portal:session.id"), "keys stored under the prefix")

	got, err := store.Get(ctx, "session.id")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", got)

	require.NoError(t, store.Delete(ctx, "session.id"))
	_, err = store.Get(ctx, "session.id")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestRedis_Delete_NoKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	store := newRedisAdapter(t, mr, "portal:")
	assert.NoError(t, store.Delete(context.Background()))
}

func TestRedis_WatchRemoval_CrossHandle(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	first := newRedisAdapter(t, mr, "portal:")
	second := newRedisAdapter(t, mr, "portal:")

	require.NoError(t, first.Set(ctx, "session.user", `{"id":"u1"}`))

	var fired atomic.Int32
	cancel, err := second.WatchRemoval("session.user", func() { fired.Add(1) })
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, first.Delete(ctx, "session.user"))
	require.Eventually(t, func() bool {
		return fired.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestRedis_WatchRemoval_IgnoresOwnDeletes(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	store := newRedisAdapter(t, mr, "portal:")

	require.NoError(t, store.Set(ctx, "session.user", `{"id":"u1"}`))

	var fired atomic.Int32
	cancel, err := store.WatchRemoval("session.user", func() { fired.Add(1) })
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, store.Delete(ctx, "session.user"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load(), "own removals are suppressed")
}

func TestRedis_WatchRemoval_IgnoresOtherKeys(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	first := newRedisAdapter(t, mr, "portal:")
	second := newRedisAdapter(t, mr, "portal:")

	require.NoError(t, first.Set(ctx, "session.user", "u"))
	require.NoError(t, first.Set(ctx, "session.role", "client"))

	var fired atomic.Int32
	cancel, err := second.WatchRemoval("session.user", func() { fired.Add(1) })
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, first.Delete(ctx, "session.role"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestRedis_WatchRemoval_CancelStopsDelivery(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	first := newRedisAdapter(t, mr, "portal:")
	second := newRedisAdapter(t, mr, "portal:")

	require.NoError(t, first.Set(ctx, "session.user", "u"))

	var fired atomic.Int32
	cancel, err := second.WatchRemoval("session.user", func() { fired.Add(1) })
	require.NoError(t, err)
	cancel()

	require.NoError(t, first.Delete(ctx, "session.user"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}
