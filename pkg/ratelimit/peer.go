package ratelimit

import (
	"context"
	"net/http"
)

type peerContextKey struct{}

// CapturePeer records the connection's remote address before any proxy
// header middleware rewrites r.RemoteAddr. It must be installed ahead of
// middleware.RealIP.
func CapturePeer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), peerContextKey{}, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PeerAddr returns the address recorded by CapturePeer, falling back to r.RemoteAddr.
func PeerAddr(r *http.Request) string {
	if addr, ok := r.Context().Value(peerContextKey{}).(string); ok && addr != "" {
		return addr
	}
	return r.RemoteAddr
}
