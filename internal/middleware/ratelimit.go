package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/securescript/securescript-api/internal/domain/quota"
)

// RateLimitMiddleware caps each identity at the configured number of
// requests per day, shared across the analyze and fix endpoints.
//
// The store is injected so the in-process map can later be swapped for
// a shared store without touching handler logic.
func RateLimitMiddleware(store quota.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip rate limit for health check
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			identity := GetIdentityFromContext(r.Context())
			if identity == "" {
				// Fall back to the client address when auth ran in a
				// mode that produced no identity.
				identity = r.RemoteAddr
			}

			decision := store.Take(identity)
			if !decision.Allowed {
				resetSeconds := int(math.Ceil(decision.ResetIn.Seconds()))
				if resetSeconds < 1 {
					resetSeconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(resetSeconds))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]any{
					"detail":              quota.ErrQuotaExceeded.Error(),
					"reset_after_seconds": resetSeconds,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
