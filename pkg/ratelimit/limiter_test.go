package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
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

func TestTokenBucket_Allow(t *testing.T) {
	clock := newFakeClock()
	tb := NewTokenBucket(5, 1.0, clock.Now)

	for i := 0; i < 5; i++ {
		assert.True(t, tb.Allow(), "request %d should be allowed", i+1)
	}
	assert.False(t, tb.Allow(), "6th request should be denied")

	clock.Advance(2 * time.Second)
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	clock.Advance(time.Hour)
	for i := 0; i < 5; i++ {
		assert.True(t, tb.Allow(), "refill is capped at capacity")
	}
	assert.False(t, tb.Allow())
}

func TestLimiter_PerKey(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(2, 1.0, time.Minute, clock.Now)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "other clients keep their own budget")
}

func TestLimiter_Prune(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(2, 1.0, time.Minute, clock.Now)

	l.Allow("a")
	clock.Advance(30 * time.Second)
	l.Allow("b")
	assert.Equal(t, 2, l.Prune())

	clock.Advance(45 * time.Second)
	assert.Equal(t, 1, l.Prune(), "a has been idle for over a minute")

	clock.Advance(time.Minute)
	assert.Equal(t, 0, l.Prune())
}

func TestLimiter_RunPrunerStops(t *testing.T) {
	l := NewLimiter(1, 1.0, time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		l.RunPruner(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pruner did not stop")
	}
}

func TestMiddleware(t *testing.T) {
	clock := newFakeClock()
	m := NewMiddleware(Config{Capacity: 2, RefillRate: 1.0 / 60.0, BucketTTL: time.Hour, Now: clock.Now})
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	}))

	send := func(remoteAddr, forwarded string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/azure_login", nil)
		req.RemoteAddr = remoteAddr
		if forwarded != "" {
			req.Header.Set("X-Forwarded-For", forwarded)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("limits per client ip", func(t *testing.T) {
		assert.Equal(t, http.StatusFound, send("192.0.2.1:1000", "").Code)
		assert.Equal(t, http.StatusFound, send("192.0.2.1:2000", "").Code)

		rec := send("192.0.2.1:3000", "")
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))

		var body errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "rate_limit_exceeded", body.Error)

		assert.Equal(t, http.StatusFound, send("192.0.2.2:1000", "").Code)
	})

	t.Run("forwarded headers are ignored unless trusted", func(t *testing.T) {
		assert.Equal(t, http.StatusTooManyRequests, send("192.0.2.1:4000", "198.51.100.7").Code)
	})

	t.Run("refills over time", func(t *testing.T) {
		clock.Advance(time.Minute)
		assert.Equal(t, http.StatusFound, send("192.0.2.1:5000", "").Code)
	})
}

func TestMiddleware_TrustForwardedFor(t *testing.T) {
	m := NewMiddleware(Config{Capacity: 1, RefillRate: 0.001, BucketTTL: time.Hour, TrustForwardedFor: true})

	req := httptest.NewRequest(http.MethodPost, "/sessions", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	assert.Equal(t, "198.51.100.7", m.clientIP(req))

	req = httptest.NewRequest(http.MethodPost, "/sessions", nil)
	req.Header.Set("X-Real-IP", " 198.51.100.8 ")
	assert.Equal(t, "198.51.100.8", m.clientIP(req))

	req = httptest.NewRequest(http.MethodPost, "/sessions", nil)
	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", m.clientIP(req))
}

func TestCapturePeerAheadOfRealIP(t *testing.T) {
	m := NewMiddleware(Config{Capacity: 2, RefillRate: 1.0 / 60.0, BucketTTL: time.Hour})

	r := chi.NewRouter()
	r.Use(CapturePeer)
	r.Use(middleware.RealIP)
	r.With(m.Handler).Post("/sessions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "203.0.113.7:5555", PeerAddr(r))
		w.WriteHeader(http.StatusFound)
	})

	allowed := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/sessions", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusTooManyRequests {
			allowed++
		}
	}
	assert.Equal(t, 2, allowed)
}

func TestPeerAddrWithoutCapture(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/sessions", nil)
	req.RemoteAddr = "192.0.2.9:80"
	assert.Equal(t, "192.0.2.9:80", PeerAddr(req))
}
