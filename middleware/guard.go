package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	gorbac "github.com/MrEthical07/goRBAC"
)

type contextKey int

const userContextKey contextKey = iota

// Protect authenticates the request with the engine and stores the
// resolved account in the request context. The token is read from the
// Authorization bearer header, falling back to the configured access
// cookie. Failures answer with the engine's status mapping and a
// plain-text body.
func Protect(eng *gorbac.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				if c, err := r.Cookie(eng.AccessCookieName()); err == nil {
					token = c.Value
				}
			}
			if token == "" {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}

			ctx := r.Context()
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				ctx = gorbac.WithClientIP(ctx, host)
			}
			user, err := eng.Authenticate(ctx, token)
			if err != nil {
				http.Error(w, "authentication failed", gorbac.HTTPStatus(err))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, userContextKey, user)))
		})
	}
}

// CurrentUser returns the account Protect stored in ctx.
func CurrentUser(ctx context.Context) (*gorbac.User, bool) {
	user, ok := ctx.Value(userContextKey).(*gorbac.User)
	return user, ok
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
