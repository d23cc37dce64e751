package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-memory/agent-memory/internal/adapter/cache"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c := New(Config{
		Addr:        mr.Addr(),
		PoolSize:    5,
		DialTimeout: time.Second,
		ReadTimeout: time.Second,
		KeyPrefix:   "am:",
	}, nil)
	t.Cleanup(func() { _ = c.Close() })

	return c, mr
}

func TestCache_GetSet(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", map[string]string{"a": "b"}, time.Minute))

	var out map[string]string
	require.NoError(t, c.Get(ctx, "k1", &out))
	assert.Equal(t, map[string]string{"a": "b"}, out)
}

func TestCache_GetMiss(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	var out string
	err := c.Get(ctx, "missing", &out)
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestCache_Delete(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", "v1", time.Minute))
	require.NoError(t, c.Delete(ctx, "k1"))

	var out string
	err := c.Get(ctx, "k1", &out)
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestCache_Clear_OnlyPrefixedKeys(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", "v1", time.Minute))
	require.NoError(t, c.Set(ctx, "k2", "v2", time.Minute))
	require.NoError(t, mr.Set("other:k3", "v3"))

	require.NoError(t, c.Clear(ctx))

	var out string
	assert.ErrorIs(t, c.Get(ctx, "k1", &out), cache.ErrNotFound)
	assert.ErrorIs(t, c.Get(ctx, "k2", &out), cache.ErrNotFound)
	assert.True(t, mr.Exists("other:k3"))
}

func TestCache_GetManySetMany(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetMany(ctx, map[string][]byte{
		"a": []byte("1"),
		"b": []byte("2"),
	}, time.Minute))

	got, err := c.GetMany(ctx, []string{"a", "b", "missing"})
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got["a"])
	assert.Equal(t, []byte("2"), got["b"])
	_, ok := got["missing"]
	assert.False(t, ok)
}

func TestCache_Health(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	assert.NoError(t, c.Health(ctx))

	mr.Close()
	assert.Error(t, c.Health(ctx))
}
