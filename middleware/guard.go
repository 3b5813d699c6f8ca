// Package middleware provides net/http glue for the engine: a request guard,
// session cookie helpers, and a rate-limit wrapper.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	authcore "github.com/UlyssesAndy/HR-Portal-sub001"
)

type identityContextKey struct{}

// IdentityFromContext returns the authenticated identity stored by [Guard].
func IdentityFromContext(ctx context.Context) (*authcore.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*authcore.Identity)
	return identity, ok
}

// Guard validates the bearer token on every request and stores the resulting
// identity in the request context. The token is read from the session cookie
// first, then the Authorization header. requiredRole is optional; empty means
// any authenticated caller passes.
func Guard(engine *authcore.Engine, requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := requestToken(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := authcore.WithClientIP(r.Context(), clientIP(r))
			ctx = authcore.WithDeviceInfo(ctx, r.UserAgent())

			var (
				identity *authcore.Identity
				err      error
			)
			if requiredRole == "" {
				identity, err = engine.Validate(ctx, token)
			} else {
				identity, err = engine.RequireRole(ctx, token, requiredRole)
			}
			if err != nil {
				status := http.StatusUnauthorized
				if errors.Is(err, authcore.ErrForbidden) {
					status = http.StatusForbidden
				}
				http.Error(w, http.StatusText(status), status)
				return
			}

			ctx = context.WithValue(ctx, identityContextKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestToken(r *http.Request) (string, bool) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

func clientIP(r *http.Request) string {
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return strings.Trim(host, "[]")
}
