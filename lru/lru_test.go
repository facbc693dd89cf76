package lru

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGeneralUse(t *testing.T) {
	cache := New[string, string](42)

	require.Equal(t, 0, cache.list.Len())
	require.Len(t, cache.elements, 0)

	require.False(t, cache.Set("key", "value"))
	require.Equal(t, 1, cache.list.Len())
	require.Len(t, cache.elements, 1)

	require.True(t, cache.Set("key", "value"))
	require.Equal(t, 1, cache.list.Len())
	require.Len(t, cache.elements, 1)

	require.True(t, cache.Has("key"))

	val, ok := cache.Get("key")
	require.Equal(t, "value", val)
	require.True(t, ok)

	require.True(t, cache.Delete("key"))
	require.Equal(t, 0, cache.list.Len())
	require.Len(t, cache.elements, 0)

	require.False(t, cache.Delete("key"))
	require.Zero(t, cache.list.Len())
	require.Len(t, cache.elements, 0)
}

func TestCacheOverCapacity(t *testing.T) {
	cache := New[string, string](2)

	require.False(t, cache.Set("key1", "value1"))
	require.False(t, cache.Set("key2", "value2"))
	require.False(t, cache.Set("key3", "value3"))

	require.False(t, cache.Has("key1"))

	val, ok := cache.Get("key1")
	require.Zero(t, val)
	require.False(t, ok)

	require.True(t, cache.Has("key2"))
	require.True(t, cache.Has("key3"))

	require.Equal(t, 2, cache.list.Len())
	require.Len(t, cache.elements, 2)
}

func TestCacheForEach(t *testing.T) {
	cache := New[string, string](42)

	for i := 1; i <= 84; i++ {
		require.False(t, cache.Set(fmt.Sprintf("key%d", i), fmt.Sprintf("value%d", i)))
	}

	// Should come out in reverse order (most recently used first).
	i := 84

	err := cache.ForEach(func(key, value string) error {
		require.Equal(t, fmt.Sprintf("key%d", i), key)
		require.Equal(t, fmt.Sprintf("value%d", i), value)
		i--
		return nil
	})
	require.NoError(t, err)
}

func TestCacheForEachPropagateUserError(t *testing.T) {
	cache := New[string, string](42)

	for i := 1; i <= 84; i++ {
		require.False(t, cache.Set(fmt.Sprintf("key%d", i), fmt.Sprintf("value%d", i)))
	}

	var called int

	err := cache.ForEach(func(key, value string) error { called++; return assert.AnError })
	require.ErrorIs(t, err, assert.AnError)
	require.Equal(t, 1, called)
}

// TestCacheEvictCallbackOnCapacityEviction simulates the chunk reader's cache: when a plaintext chunk is pushed out
// by capacity pressure, the caller learns about it so the backing buffer can be zeroized.
func TestCacheEvictCallbackOnCapacityEviction(t *testing.T) {
	var evicted []string

	cache := NewWithEvictCallback[int, []byte](2, func(key int, value []byte) {
		evicted = append(evicted, fmt.Sprintf("%d:%s", key, value))
	})

	cache.Set(1, []byte("chunk-1"))
	cache.Set(2, []byte("chunk-2"))
	require.Empty(t, evicted)

	cache.Set(3, []byte("chunk-3"))
	require.Equal(t, []string{"1:chunk-1"}, evicted)
}

func TestCacheEvictCallbackOnDeleteAndPurge(t *testing.T) {
	var evicted []int

	cache := NewWithEvictCallback[int, []byte](10, func(key int, _ []byte) {
		evicted = append(evicted, key)
	})

	cache.Set(1, []byte("a"))
	cache.Set(2, []byte("b"))

	require.True(t, cache.Delete(1))
	require.Equal(t, []int{1}, evicted)

	cache.Purge()
	require.Equal(t, []int{1, 2}, evicted)
	require.False(t, cache.Has(2))
}
