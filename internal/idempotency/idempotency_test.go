package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuard(t *testing.T) (*RedisGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisGuard(rdb, time.Minute), mr
}

func TestRedisGuardClaim(t *testing.T) {
	ctx := context.Background()
	g, mr := newGuard(t)

	ok, err := g.Claim(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Claim(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok, "second claim of the same key is rejected")

	assert.True(t, mr.Exists("idempotent-key:abc"))
	assert.Equal(t, time.Minute, mr.TTL("idempotent-key:abc"))

	require.NoError(t, g.Release(ctx, "abc"))
	ok, err = g.Claim(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisGuardExpiry(t *testing.T) {
	ctx := context.Background()
	g, mr := newGuard(t)

	ok, err := g.Claim(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = g.Claim(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisGuardBlankKey(t *testing.T) {
	ctx := context.Background()
	g, _ := newGuard(t)

	for range 2 {
		ok, err := g.Claim(ctx, "  ")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.NoError(t, g.Release(ctx, ""))
}

func TestRedisGuardUnavailable(t *testing.T) {
	g, mr := newGuard(t)
	mr.Close()

	_, err := g.Claim(context.Background(), "k")
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	var g Guard = Nop{}
	ok, err := g.Claim(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, g.Release(context.Background(), "k"))
}
