package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCounter(t *testing.T) (*Counter, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCounter(client, "rl"), mr
}

func TestCounterHitWithinWindow(t *testing.T) {
	c, _ := setupCounter(t)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	for want := int64(1); want <= 3; want++ {
		got, err := c.Hit(ctx, "10.0.0.1", time.Second, now)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestCounterNewWindowResets(t *testing.T) {
	c, _ := setupCounter(t)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	_, err := c.Hit(ctx, "10.0.0.1", time.Second, now)
	require.NoError(t, err)

	got, err := c.Hit(ctx, "10.0.0.1", time.Second, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestCounterKeysAreIsolated(t *testing.T) {
	c, _ := setupCounter(t)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	_, err := c.Hit(ctx, "a", time.Second, now)
	require.NoError(t, err)
	got, err := c.Hit(ctx, "b", time.Second, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestCounterSetsExpiry(t *testing.T) {
	c, mr := setupCounter(t)
	now := time.Unix(1_700_000_000, 0)

	_, err := c.Hit(context.Background(), "a", time.Second, now)
	require.NoError(t, err)

	key := "rl:a:1700000000"
	require.True(t, mr.Exists(key))
	assert.Equal(t, 2*time.Second, mr.TTL(key))

	mr.FastForward(3 * time.Second)
	assert.False(t, mr.Exists(key))
}

func TestCounterPing(t *testing.T) {
	c, mr := setupCounter(t)
	require.NoError(t, c.Ping(context.Background()))

	mr.SetError("LOADING redis is loading the dataset")
	assert.Error(t, c.Ping(context.Background()))
}
