package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/gitpoints/internal/ratelimit"
)

// RateLimit rejects requests whose key has no tokens left with 429 and the
// API's usual error body.
func RateLimit(limiter ratelimit.Limiter, key ratelimit.KeyFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if !limiter.Allow(k) {
				logger.Info("rate limit exceeded",
					slog.String("key", k),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"success": false,
					"error":   "Too many requests, slow down.",
					"message": "rate_limited",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
