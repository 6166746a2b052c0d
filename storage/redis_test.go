package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *RedisClient {
	t.Helper()
	mr := miniredis.RunT(t)
	rc, err := NewRedisClient(mr.Addr(), "", "clinicback:", 0)
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })
	return rc
}

func TestRedisClientRoundTrip(t *testing.T) {
	rc := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.SetWithTTL(ctx, "greeting", []byte("hello"), time.Minute))

	got, err := rc.Get(ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	require.NoError(t, rc.Delete(ctx, "greeting"))
	_, err = rc.Get(ctx, "greeting")
	assert.Error(t, err)
}

func TestLockManagerMutualExclusion(t *testing.T) {
	rc := setupRedis(t)
	lm := NewLockManager(rc)
	ctx := context.Background()

	release, err := lm.Acquire(ctx, "subscription:create:1", 30*time.Second)
	require.NoError(t, err)

	// Held lock rejects a second acquirer without blocking.
	_, err = lm.Acquire(ctx, "subscription:create:1", 30*time.Second)
	require.Error(t, err)

	// A different name is an independent lock.
	other, err := lm.Acquire(ctx, "subscription:create:2", 30*time.Second)
	require.NoError(t, err)
	other()

	release()
	release2, err := lm.Acquire(ctx, "subscription:create:1", 30*time.Second)
	require.NoError(t, err)
	release2()
}
