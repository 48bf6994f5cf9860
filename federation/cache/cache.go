package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"
)

// DefaultSize is the number of entries kept when New is called with a non-positive size.
const DefaultSize = 128

// Cache is an in-memory store with get-with-set semantics.
// Concurrent misses for the same key share a single call to the loader.
type Cache struct {
	store *lru.Cache
	group singleflight.Group
}

// New creates a Cache holding at most size entries.
func New(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}

	store, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache store: %w", err)
	}

	return &Cache{store: store}, nil
}

// Get returns the cached value for key.
func (c *Cache) Get(key string) (any, bool) {
	return c.store.Get(key)
}

// Set stores value under key.
func (c *Cache) Set(key string, value any) {
	c.store.Add(key, value)
}

// Delete drops key from the cache.
func (c *Cache) Delete(key string) {
	c.store.Remove(key)
}

// GetWithSet returns the cached value for key, or calls load once and stores its result.
// A failed load is not cached and its error is returned to every waiting caller.
func (c *Cache) GetWithSet(ctx context.Context, key string, load func(ctx context.Context) (any, error)) (any, error) {
	if v, ok := c.store.Get(key); ok {
		return v, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// another flight may have finished between the lookup above and this call
		if v, ok := c.store.Get(key); ok {
			return v, nil
		}

		v, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		c.store.Add(key, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}
