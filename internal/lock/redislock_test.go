package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestAcquireAndRelease(t *testing.T) {
	client, mr := newClient(t)
	ctx := context.Background()

	l, err := Acquire(ctx, client, "pos:order:c1:s1", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("pos:order:c1:s1"))

	_, err = Acquire(ctx, client, "pos:order:c1:s1", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)

	require.NoError(t, l.Release(ctx))
	assert.False(t, mr.Exists("pos:order:c1:s1"))

	_, err = Acquire(ctx, client, "pos:order:c1:s1", time.Minute)
	require.NoError(t, err)
}

func TestReleaseOnlyByOwner(t *testing.T) {
	client, mr := newClient(t)
	ctx := context.Background()

	l, err := Acquire(ctx, client, "pos:order:c1:s1", time.Minute)
	require.NoError(t, err)

	// another process overwrites the key after expiry
	mr.FastForward(2 * time.Minute)
	other, err := Acquire(ctx, client, "pos:order:c1:s1", time.Minute)
	require.NoError(t, err)

	require.NoError(t, l.Release(ctx))
	assert.True(t, mr.Exists("pos:order:c1:s1"), "stale owner must not free the new lock")
	require.NoError(t, other.Release(ctx))
	assert.False(t, mr.Exists("pos:order:c1:s1"))
}

func TestLockExpires(t *testing.T) {
	client, mr := newClient(t)
	ctx := context.Background()

	_, err := Acquire(ctx, client, "pos:order:c1:s1", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	_, err = Acquire(ctx, client, "pos:order:c1:s1", time.Second)
	require.NoError(t, err)
}
