package middleware

import (
	"errors"
	"net/http"
	"strconv"

	authcore "github.com/UlyssesAndy/HR-Portal-sub001"
	"github.com/UlyssesAndy/HR-Portal-sub001/internal/rate"
)

// RateLimit applies a named rate-limit policy per client IP before the
// handler runs. Denied requests receive 429 with Retry-After and
// X-RateLimit-Reset headers.
func RateLimit(engine *authcore.Engine, policy rate.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := "ip:" + clientIP(r)

			err := engine.CheckRate(r.Context(), subject, policy)
			if err != nil {
				var limited *authcore.RateLimitError
				if errors.As(err, &limited) {
					w.Header().Set("Retry-After", strconv.Itoa(int(limited.RetryAfter.Seconds())+1))
					w.Header().Set("X-RateLimit-Limit", strconv.Itoa(policy.Limit))
					w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(limited.ResetAt.Unix(), 10))
					http.Error(w, "too many requests", http.StatusTooManyRequests)
					return
				}
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
