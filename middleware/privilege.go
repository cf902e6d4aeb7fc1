package middleware

import (
	"net/http"

	gorbac "github.com/MrEthical07/goRBAC"
)

// RestrictTo allows only the named roles through. It must run after
// Protect; a request without an authenticated account is rejected, and
// a role outside the allow list answers 403 rather than falling
// through.
func RestrictTo(roles ...gorbac.Role) func(http.Handler) http.Handler {
	allowed := make(map[gorbac.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := CurrentUser(r.Context())
			if !ok {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			if _, ok := allowed[user.Role]; !ok {
				http.Error(w, "insufficient role", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePrivilege allows accounts whose role ranks at or above
// required. It must run after Protect.
func RequirePrivilege(required gorbac.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := CurrentUser(r.Context())
			if !ok {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			if !user.Role.AtLeast(required) {
				http.Error(w, "insufficient privilege", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireHigherPrivilege allows a request only when the acting account
// strictly outranks the target account named by targetID. Peers are
// rejected, which also stops an account from acting on itself. A
// missing target answers 404.
func RequireHigherPrivilege(eng *gorbac.Engine, targetID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acting, ok := CurrentUser(r.Context())
			if !ok {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			id := targetID(r)
			if id == "" {
				http.Error(w, "target account required", http.StatusBadRequest)
				return
			}
			target, err := eng.LookupUser(r.Context(), id)
			if err != nil {
				http.Error(w, "target account not found", gorbac.HTTPStatus(err))
				return
			}
			if !acting.Role.HigherThan(target.Role) {
				http.Error(w, "insufficient privilege over target", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
