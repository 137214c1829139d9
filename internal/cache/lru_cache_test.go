package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRUCache_Basic(t *testing.T) {
	cache := NewLRUCache[[]string](2)

	cache.Set("key1", []string{"a", "x"})
	value, exists := cache.Get("key1")
	assert.True(t, exists)
	assert.Equal(t, []string{"a", "x"}, value)

	_, exists = cache.Get("non-existent")
	assert.False(t, exists)
}

func TestLRUCache_Capacity(t *testing.T) {
	cache := NewLRUCache[string](2)

	cache.Set("key1", "value1")
	cache.Set("key2", "value2")
	// evicts key1
	cache.Set("key3", "value3")

	_, exists := cache.Get("key1")
	assert.False(t, exists)

	value, exists := cache.Get("key2")
	assert.True(t, exists)
	assert.Equal(t, "value2", value)

	value, exists = cache.Get("key3")
	assert.True(t, exists)
	assert.Equal(t, "value3", value)
	assert.Equal(t, 2, cache.Len())
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	cache := NewLRUCache[string](2)

	cache.Set("key1", "value1")
	cache.Set("key1", "newvalue1")

	value, exists := cache.Get("key1")
	assert.True(t, exists)
	assert.Equal(t, "newvalue1", value)
	assert.Equal(t, 1, cache.Len())
}

func TestLRUCache_LRUOrder(t *testing.T) {
	cache := NewLRUCache[string](2)

	cache.Set("key1", "value1")
	cache.Set("key2", "value2")

	// key1 becomes most recently used, so key2 is evicted next
	cache.Get("key1")
	cache.Set("key3", "value3")

	value, exists := cache.Get("key1")
	assert.True(t, exists)
	assert.Equal(t, "value1", value)

	_, exists = cache.Get("key2")
	assert.False(t, exists)
}

func TestLRUCache_ZeroSizeStoresNothing(t *testing.T) {
	cache := NewLRUCache[int](0)
	cache.Set("key1", 1)
	_, exists := cache.Get("key1")
	assert.False(t, exists)
}

func TestLRUCache_Purge(t *testing.T) {
	cache := NewLRUCache[int](4)
	cache.Set("a", 1)
	cache.Set("b", 2)
	cache.Purge()
	assert.Equal(t, 0, cache.Len())
	_, exists := cache.Get("a")
	assert.False(t, exists)
}

func TestLRUCache_Concurrent(t *testing.T) {
	cache := NewLRUCache[int](64)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*200+i)%100)
				cache.Set(key, i)
				cache.Get(key)
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, cache.Len(), 64)
}
