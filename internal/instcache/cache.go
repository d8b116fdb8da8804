// Package instcache holds resolved contract instances keyed by the
// context they were resolved in.
package instcache

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// Key identifies a resolution context. Two keys are equal when the contract
// types are identical, the canonical locale strings match and the providers
// are the same pointer.
type Key struct {
	Contract reflect.Type
	Locale   string
	Provider any
}

// Cache maps keys to instances. It is safe for concurrent use.
type Cache[V any] struct {
	entries sync.Map // map[Key]V
	size    atomic.Int64
}

// New creates an empty cache.
func New[V any]() *Cache[V] {
	return &Cache[V]{}
}

// Get returns the value stored for key.
func (c *Cache[V]) Get(key Key) (V, bool) {
	v, ok := c.entries.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true //nolint:errcheck // only V is ever stored
}

// GetOrCreate returns the value stored for key, building and storing it when
// absent. Concurrent callers may each build a value but all of them receive
// the one that was stored first.
func (c *Cache[V]) GetOrCreate(key Key, build func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err := build()
	if err != nil {
		var zero V
		return zero, err
	}

	actual, loaded := c.entries.LoadOrStore(key, v)
	if !loaded {
		c.size.Add(1)
	}
	return actual.(V), nil //nolint:errcheck // only V is ever stored
}

// Len is the number of cached instances.
func (c *Cache[V]) Len() int {
	return int(c.size.Load())
}

// Purge drops every cached instance.
func (c *Cache[V]) Purge() {
	c.entries.Range(func(k, _ any) bool {
		if _, loaded := c.entries.LoadAndDelete(k); loaded {
			c.size.Add(-1)
		}
		return true
	})
}
