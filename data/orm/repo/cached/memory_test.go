package cached

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repokit/cache"
)

func TestMemoryCache_GetSetInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0, time.Minute)

	_, ok, err := c.Get(ctx, "users", "get:1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "users", "get:1", []byte("a"), 0))
	require.NoError(t, c.Set(ctx, "users", "get:2", []byte("b"), time.Second))
	require.NoError(t, c.Set(ctx, "posts", "get:1", []byte("p"), 0))

	v, ok, err := c.Get(ctx, "users", "get:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("a"), v)

	require.NoError(t, c.Invalidate(ctx, "users"))
	_, ok, _ = c.Get(ctx, "users", "get:1")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "users", "get:2")
	assert.False(t, ok)

	v, ok, _ = c.Get(ctx, "posts", "get:1")
	assert.True(t, ok)
	assert.Equal(t, []byte("p"), v)
}

func TestMemoryCache_InvalidateDoesNotTouchSimilarTables(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0, 0)
	require.NoError(t, c.Set(ctx, "user", "k", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "users", "k", []byte("2"), 0))

	require.NoError(t, c.Invalidate(ctx, "user"))
	_, ok, _ := c.Get(ctx, "user", "k")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "users", "k")
	assert.True(t, ok)
}

func TestMemoryCache_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	store := cache.New[string, []byte](cache.Config{Now: func() time.Time { return now }})
	c := NewMemoryCacheFrom(store)

	require.NoError(t, c.Set(ctx, "users", "k", []byte("v"), time.Second))
	_, ok, _ := c.Get(ctx, "users", "k")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok, _ = c.Get(ctx, "users", "k")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Expires)
}
