package openid

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestCacheFetch(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh entry is reused", func(t *testing.T) {
		clock := newFakeClock()
		cache := NewCache[string](time.Hour, 10*time.Second, clock.Now)
		var calls int32
		fetch := func(context.Context) (string, error) {
			atomic.AddInt32(&calls, 1)
			return "v1", nil
		}

		for i := 0; i < 3; i++ {
			v, err := cache.Fetch(ctx, "k", fetch)
			require.NoError(t, err)
			assert.Equal(t, "v1", v)
		}
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("expired entry is refetched", func(t *testing.T) {
		clock := newFakeClock()
		cache := NewCache[int](time.Hour, 10*time.Second, clock.Now)
		var calls int32
		fetch := func(context.Context) (int, error) {
			return int(atomic.AddInt32(&calls, 1)), nil
		}

		v, err := cache.Fetch(ctx, "k", fetch)
		require.NoError(t, err)
		assert.Equal(t, 1, v)

		clock.Advance(time.Hour + time.Second)
		v, err = cache.Fetch(ctx, "k", fetch)
		require.NoError(t, err)
		assert.Equal(t, 2, v)
	})

	t.Run("failures are not cached", func(t *testing.T) {
		cache := NewCache[string](time.Hour, 10*time.Second, nil)
		boom := errors.New("boom")

		_, err := cache.Fetch(ctx, "k", func(context.Context) (string, error) { return "", boom })
		assert.ErrorIs(t, err, boom)

		v, err := cache.Fetch(ctx, "k", func(context.Context) (string, error) { return "ok", nil })
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
	})

	t.Run("keys are independent", func(t *testing.T) {
		cache := NewCache[string](time.Hour, 10*time.Second, nil)
		a, err := cache.Fetch(ctx, "a", func(context.Context) (string, error) { return "A", nil })
		require.NoError(t, err)
		b, err := cache.Fetch(ctx, "b", func(context.Context) (string, error) { return "B", nil })
		require.NoError(t, err)
		assert.Equal(t, "A", a)
		assert.Equal(t, "B", b)
	})
}

func TestCacheSingleFlight(t *testing.T) {
	cache := NewCache[string](time.Hour, 10*time.Second, nil)
	release := make(chan struct{})
	var calls int32

	fetch := func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "shared", nil
	}

	const callers = 20
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := cache.Fetch(context.Background(), "k", fetch)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	require.Eventually(t, func() bool { return cache.isRefreshing("k") }, time.Second, time.Millisecond)
	// Give the remaining goroutines time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, v := range results {
		assert.Equal(t, "shared", v)
	}
}

func TestCacheServesStaleWithinGrace(t *testing.T) {
	clock := newFakeClock()
	cache := NewCache[string](time.Hour, 10*time.Second, clock.Now)
	ctx := context.Background()

	_, err := cache.Fetch(ctx, "k", func(context.Context) (string, error) { return "old", nil })
	require.NoError(t, err)

	clock.Advance(time.Hour + 5*time.Second)

	release := make(chan struct{})
	refreshed := make(chan string, 1)
	go func() {
		v, _ := cache.Fetch(ctx, "k", func(context.Context) (string, error) {
			<-release
			return "new", nil
		})
		refreshed <- v
	}()
	require.Eventually(t, func() bool { return cache.isRefreshing("k") }, time.Second, time.Millisecond)

	v, err := cache.Fetch(ctx, "k", func(context.Context) (string, error) {
		t.Error("stale reader must not start a second fetch")
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "old", v)

	close(release)
	assert.Equal(t, "new", <-refreshed)

	v, err = cache.Fetch(ctx, "k", func(context.Context) (string, error) { return "unused", nil })
	require.NoError(t, err)
	assert.Equal(t, "new", v)
}

func TestCacheBeyondGraceWaitsForRefresh(t *testing.T) {
	clock := newFakeClock()
	cache := NewCache[string](time.Hour, 10*time.Second, clock.Now)
	ctx := context.Background()

	_, err := cache.Fetch(ctx, "k", func(context.Context) (string, error) { return "old", nil })
	require.NoError(t, err)

	clock.Advance(time.Hour + time.Minute)

	release := make(chan struct{})
	first := make(chan string, 1)
	go func() {
		v, _ := cache.Fetch(ctx, "k", func(context.Context) (string, error) {
			<-release
			return "new", nil
		})
		first <- v
	}()
	require.Eventually(t, func() bool { return cache.isRefreshing("k") }, time.Second, time.Millisecond)

	second := make(chan string, 1)
	go func() {
		v, _ := cache.Fetch(ctx, "k", func(context.Context) (string, error) { return "other", nil })
		second <- v
	}()

	select {
	case v := <-second:
		t.Fatalf("reader past the grace window returned early with %q", v)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	assert.Equal(t, "new", <-first)
	assert.Equal(t, "new", <-second)
}

func TestCacheCallerCancellation(t *testing.T) {
	cache := NewCache[string](time.Hour, 10*time.Second, nil)
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := cache.Fetch(ctx, "k", func(context.Context) (string, error) {
		<-release
		return "late", nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
