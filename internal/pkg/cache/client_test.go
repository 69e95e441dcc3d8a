package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goimovel/internal/pkg/cache"
)

func newClient(t *testing.T) (cache.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return cache.NewFromRedis(rdb), mr
}

func TestIncr_KeyAlwaysHasTTL(t *testing.T) {
	c, mr := newClient(t)
	ctx := context.Background()

	n, err := c.Incr(ctx, "rate-limit:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, time.Minute, mr.TTL("rate-limit:1.2.3.4"))

	mr.FastForward(20 * time.Second)
	n, err = c.Incr(ctx, "rate-limit:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	// A janela é fixa: o segundo incremento não renova o TTL.
	assert.Equal(t, 40*time.Second, mr.TTL("rate-limit:1.2.3.4"))

	mr.FastForward(41 * time.Second)
	n, err = c.Incr(ctx, "rate-limit:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "janela expirada recomeça")
}

func TestSetNX_DoesNotOverwrite(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "listing:property:1", "-", time.Second))
	ok, err := c.SetNX(ctx, "listing:property:1", "antigo", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := c.Get(ctx, "listing:property:1")
	require.NoError(t, err)
	assert.Equal(t, "-", v)

	_, err = c.Get(ctx, "listing:property:2")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}
