package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetAndGet(t *testing.T) {
	c := New[string](5 * time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	val, ok := c.Get("key1")
	require.True(t, ok)
	assert.Equal(t, "value1", val)
}

func TestCache_GetMiss(t *testing.T) {
	c := New[string](5 * time.Minute)
	defer c.Close()

	_, ok := c.Get("nonexistent")
	assert.False(t, ok)
}

func TestCache_Expiration(t *testing.T) {
	c := New[int](time.Hour)
	defer c.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("key1", 1)
	now = now.Add(2 * time.Hour)

	_, ok := c.Get("key1")
	assert.False(t, ok, "expected cache entry to be expired")
	assert.Equal(t, 1, c.Len(), "expired entry stays until evicted")

	c.evictExpired()
	assert.Equal(t, 0, c.Len())
}

func TestCache_Delete(t *testing.T) {
	c := New[string](5 * time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	c.Delete("key1")

	_, ok := c.Get("key1")
	assert.False(t, ok)
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := New[string](time.Minute)
	c.Close()
	c.Close()

	c.Set("k", "v")
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}
