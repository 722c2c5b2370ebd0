package asset

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Key is a hashable cache key with a stable string form.
type Key interface {
	comparable
	String() string
}

// Cache is a single-flight cache. At most one load per key is in flight;
// concurrent callers join it and are notified in the order they joined.
// Successful values are kept until evicted; failures are handed to every
// joined caller and then forgotten, so the next call loads again.
type Cache[K Key, V any] struct {
	mu    sync.Mutex
	ready map[K]V
	loads map[K]int
	group singleflight.Group
}

func NewCache[K Key, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		ready: make(map[K]V),
		loads: make(map[K]int),
	}
}

// Peek returns the cached value for key without blocking or loading.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.ready[key]
	return v, ok
}

// GetOrLoad returns the cached value for key, joining or starting a load when
// absent. If ctx ends first the caller gets ctx.Err(); the load itself keeps
// running detached from ctx and still fills the cache.
func (c *Cache[K, V]) GetOrLoad(ctx context.Context, key K, load func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.Peek(key); ok {
		return v, nil
	}
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.String(), func() (any, error) {
		// A flight that finished between our Peek and DoChan already filled the entry.
		if v, ok := c.Peek(key); ok {
			return v, nil
		}
		c.mu.Lock()
		c.loads[key]++
		c.mu.Unlock()

		v, err := c.safeLoad(loadCtx, load)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.ready[key] = v
		c.mu.Unlock()
		return v, nil
	})

	var zero V
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (c *Cache[K, V]) safeLoad(ctx context.Context, load func(context.Context) (V, error)) (v V, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("load panic: %v", rec)
		}
	}()
	return load(ctx)
}

// Loads returns how many loads were started for key.
func (c *Cache[K, V]) Loads(key K) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads[key]
}

// Evict drops a cached value. An in-flight load for key is not affected.
func (c *Cache[K, V]) Evict(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ready, key)
}

// Len returns the number of cached values.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ready)
}
