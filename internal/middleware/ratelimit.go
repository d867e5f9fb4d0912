package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimit rejects requests beyond rps (with burst) using one shared token
// bucket. A non-positive rps disables limiting.
func RateLimit(rps float64, burst int) func(http.HandlerFunc) http.HandlerFunc {
	if rps <= 0 {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				slog.WarnContext(r.Context(), "rate limit exceeded", "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error": map[string]string{
						"code":    "RATE_LIMITED",
						"message": "Too many requests",
					},
					"correlationId": GetCorrelationID(r.Context()),
				})
				return
			}
			next(w, r)
		}
	}
}
