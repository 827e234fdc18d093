package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/gmsf/gmsf-contracts-backend/internal/cache"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	IdempotencyTTL       = 24 * time.Hour
)

type cachedResponse struct {
	StatusCode int    `json:"status_code"`
	Body       string `json:"body"`
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
		body:           &bytes.Buffer{},
	}
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Idempotency replays the cached response for a repeated Idempotency-Key so
// that retried writes do not execute their side effects twice. Mutating
// requests without a key are rejected. Reads pass through untouched.
func Idempotency(redisClient *cache.Redis) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			default:
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"Idempotency-Key header is required"}`))
				return
			}

			cacheKey := "idempotency:" + r.Method + ":" + r.URL.Path + ":" + key

			if cached, err := redisClient.Get(r.Context(), cacheKey); err == nil {
				var resp cachedResponse
				if json.Unmarshal([]byte(cached), &resp) == nil {
					w.Header().Set("Content-Type", "application/json")
					w.Header().Set("X-Idempotency-Replay", "true")
					w.WriteHeader(resp.StatusCode)
					w.Write([]byte(resp.Body))
					return
				}
			} else if err != redis.Nil {
				// Redis down: run the request rather than fail closed.
				next.ServeHTTP(w, r)
				return
			}

			recorder := newResponseRecorder(w)
			next.ServeHTTP(recorder, r)

			// Only successful outcomes are replayable; failed preconditions
			// may succeed on retry.
			if recorder.statusCode < 300 {
				respJSON, err := json.Marshal(cachedResponse{
					StatusCode: recorder.statusCode,
					Body:       recorder.body.String(),
				})
				if err == nil {
					redisClient.Set(r.Context(), cacheKey, string(respJSON), IdempotencyTTL)
				}
			}
		})
	}
}
