package ratelimit

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/tendant/azure-login/pkg/metrics"
)

// Config holds rate limiting configuration
type Config struct {
	Capacity   int     // Max burst per client
	RefillRate float64 // Requests per second per client
	BucketTTL  time.Duration

	// TrustForwardedFor keys clients by X-Forwarded-For / X-Real-IP when behind a proxy.
	// Otherwise clients are keyed by the socket peer recorded by CapturePeer.
	TrustForwardedFor bool

	Now func() time.Time
}

// Middleware rejects clients that exceed their request budget
type Middleware struct {
	config  Config
	limiter *Limiter
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewMiddleware creates a new rate limiting middleware
func NewMiddleware(config Config) *Middleware {
	return &Middleware{
		config:  config,
		limiter: NewLimiter(config.Capacity, config.RefillRate, config.BucketTTL, config.Now),
	}
}

// Limiter returns the per-client limiter, for pruning
func (m *Middleware) Limiter() *Limiter {
	return m.limiter
}

// Handler returns the rate limiting middleware handler
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := m.clientIP(r)
		if !m.limiter.Allow(ip) {
			m.rateLimitExceeded(w, r, ip)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) rateLimitExceeded(w http.ResponseWriter, r *http.Request, ip string) {
	slog.Warn("Rate limit exceeded", "ip", ip, "path", r.URL.Path, "method", r.Method)
	metrics.ObserveRateLimited(r.URL.Path)

	retryAfter := 60
	if m.config.RefillRate > 0 {
		retryAfter = int(math.Ceil(1 / m.config.RefillRate))
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	render.Status(r, http.StatusTooManyRequests)
	render.JSON(w, r, errorResponse{
		Error:   "rate_limit_exceeded",
		Message: "Too many requests. Please try again later.",
	})
}

func (m *Middleware) clientIP(r *http.Request) string {
	if m.config.TrustForwardedFor {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	addr := PeerAddr(r)
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
