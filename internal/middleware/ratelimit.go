package middleware

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gmsf/gmsf-contracts-backend/internal/cache"
)

const (
	// RateLimit is the allowed number of requests per window per client IP.
	RateLimit       = 100
	RateLimitWindow = 1 * time.Minute
)

// RateLimiter enforces a fixed-window request limit per client IP, counted
// in Redis. When Redis is unavailable the request is allowed through.
func RateLimiter(redisClient *cache.Redis) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			key := "ratelimit:" + ip

			count, err := redisClient.Incr(r.Context(), key)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				redisClient.Expire(r.Context(), key, RateLimitWindow)
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", RateLimit))
			if count > RateLimit {
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"Rate limit exceeded. Try again later."}`))
				return
			}
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", RateLimit-int(count)))

			next.ServeHTTP(w, r)
		})
	}
}
