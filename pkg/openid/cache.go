package openid

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type cacheEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// Cache memoizes one value per key for a fixed TTL.
//
// Misses are single-flight per key. While a refresh is running, callers
// whose entry expired less than grace ago receive the stale value instead of
// waiting. Failed fetches are never stored.
type Cache[T any] struct {
	ttl   time.Duration
	grace time.Duration
	now   func() time.Time

	mu         sync.Mutex
	entries    map[string]cacheEntry[T]
	refreshing map[string]bool
	group      singleflight.Group
}

// NewCache creates a cache with the given TTL and stale grace window.
func NewCache[T any](ttl, grace time.Duration, now func() time.Time) *Cache[T] {
	if now == nil {
		now = time.Now
	}
	return &Cache[T]{
		ttl:        ttl,
		grace:      grace,
		now:        now,
		entries:    make(map[string]cacheEntry[T]),
		refreshing: make(map[string]bool),
	}
}

// Fetch returns the cached value for key, calling fetch when it is missing or expired.
//
// The upstream call runs detached from the caller's cancellation so that one
// abandoned request cannot fail the others sharing it; fetch is expected to
// bound itself with a timeout. The caller still stops waiting when ctx is done.
func (c *Cache[T]) Fetch(ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, error) {
	var zero T

	c.mu.Lock()
	entry, ok := c.entries[key]
	refreshing := c.refreshing[key]
	c.mu.Unlock()

	now := c.now()
	if ok && now.Before(entry.expiresAt) {
		return entry.value, nil
	}
	if ok && refreshing && now.Before(entry.expiresAt.Add(c.grace)) {
		return entry.value, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		c.setRefreshing(key, true)
		defer c.setRefreshing(key, false)

		c.mu.Lock()
		current, ok := c.entries[key]
		c.mu.Unlock()
		if ok && c.now().Before(current.expiresAt) {
			return current.value, nil
		}

		value, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[key] = cacheEntry[T]{value: value, expiresAt: c.now().Add(c.ttl)}
		c.mu.Unlock()
		return value, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func (c *Cache[T]) setRefreshing(key string, v bool) {
	c.mu.Lock()
	if v {
		c.refreshing[key] = true
	} else {
		delete(c.refreshing, key)
	}
	c.mu.Unlock()
}

func (c *Cache[T]) isRefreshing(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshing[key]
}
