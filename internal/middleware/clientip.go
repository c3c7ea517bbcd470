package middleware

import (
	"context"
	"net/http"
)

// ClientIPContextKey is the context key holding the resolved client IP.
const ClientIPContextKey contextKey = "client_ip"

// WithClientIP resolves the client IP once per request (proxy headers
// first, then RemoteAddr, see GetClientIP) and stores it in the
// context so rate limiting and webhook logging agree on the caller's
// identity. Place it ahead of the rate limiter in the chain.
//
// The proxy headers are spoofable; only trust them when the app sits
// behind a proxy that sets them.
func WithClientIP() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), ClientIPContextKey, GetClientIP(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClientIPFromContext returns the IP stored by WithClientIP, or ""
// when the middleware did not run.
func GetClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(ClientIPContextKey).(string)
	return ip
}
