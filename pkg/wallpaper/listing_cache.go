package wallpaper

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// listingCache memoizes an expensive directory listing. Invalidate bumps a
// generation counter so that a load which started before the invalidation can
// return its result to its caller but never publishes it.
type listingCache[T any] struct {
	load func() (T, error)

	mu    sync.RWMutex
	value T
	valid bool
	gen   uint64

	group singleflight.Group
}

func newListingCache[T any](load func() (T, error)) *listingCache[T] {
	return &listingCache[T]{load: load}
}

// GetOrLoad returns the memoized value or loads it. Concurrent loads are collapsed.
func (c *listingCache[T]) GetOrLoad() (T, error) {
	c.mu.RLock()
	if c.valid {
		v := c.value
		c.mu.RUnlock()
		return v, nil
	}
	gen := c.gen
	c.mu.RUnlock()

	v, err, _ := c.group.Do("listing", func() (interface{}, error) {
		loaded, err := c.load()
		if err != nil {
			return loaded, err
		}
		c.mu.Lock()
		if c.gen == gen {
			c.value = loaded
			c.valid = true
		}
		c.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate drops the memoized value.
func (c *listingCache[T]) Invalidate() {
	c.mu.Lock()
	var zero T
	c.value = zero
	c.valid = false
	c.gen++
	c.mu.Unlock()
	c.group.Forget("listing")
}
