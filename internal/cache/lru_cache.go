package cache

import (
	"container/list"
	"sync"
)

// entry represents a key-value pair in the cache
type entry[V any] struct {
	key   string
	value V
}

// LRUCache is a goroutine-safe least recently used cache
type LRUCache[V any] struct {
	mu         sync.Mutex
	maxSize    int
	cache      map[string]*list.Element
	doubleList *list.List
}

// NewLRUCache creates a new LRU cache with the given maximum size
func NewLRUCache[V any](maxSize int) *LRUCache[V] {
	return &LRUCache[V]{
		maxSize:    maxSize,
		cache:      make(map[string]*list.Element),
		doubleList: list.New(),
	}
}

// Set adds or updates a key-value pair in the cache
func (l *LRUCache[V]) Set(key string, value V) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxSize <= 0 {
		return
	}
	if element, exists := l.cache[key]; exists {
		l.doubleList.MoveToFront(element)
		element.Value.(*entry[V]).value = value
		return
	}

	ele := l.doubleList.PushFront(&entry[V]{key: key, value: value})
	l.cache[key] = ele

	if l.doubleList.Len() > l.maxSize {
		if oldest := l.doubleList.Back(); oldest != nil {
			l.removeElement(oldest)
		}
	}
}

// Get retrieves a value from the cache by key
func (l *LRUCache[V]) Get(key string) (V, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	element, exists := l.cache[key]
	if !exists {
		var zero V
		return zero, false
	}
	l.doubleList.MoveToFront(element)
	return element.Value.(*entry[V]).value, true
}

func (l *LRUCache[V]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.doubleList.Len()
}

// Purge drops every entry
func (l *LRUCache[V]) Purge() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]*list.Element)
	l.doubleList.Init()
}

func (l *LRUCache[V]) removeElement(element *list.Element) {
	l.doubleList.Remove(element)
	delete(l.cache, element.Value.(*entry[V]).key)
}
