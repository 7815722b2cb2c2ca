package auth

import (
	"net/http"

	"github.com/atrium-hq/atrium/internal/platform/httpx"
	"github.com/atrium-hq/atrium/internal/shared"
)

// SessionCookie is the cookie carrying the opaque session token.
const SessionCookie = "atrium_session"

// SessionMiddleware resolves the session cookie against the registry and
// stores the session in the request context. Requests without a valid token
// proceed anonymously.
func SessionMiddleware(registry *Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookie)
			if err == nil {
				if sess, ok := registry.Get(cookie.Value); ok {
					ctx := ContextWithSession(r.Context(), sess)
					if sess.IsAuthenticated() {
						ctx = shared.ContextWithActor(ctx, sess.UserID())
					}
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuthenticated rejects anonymous requests with 401.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())
		if sess == nil || !sess.IsAuthenticated() {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole gates a route on the session's cached role set. The check
// uses the login-time snapshot, mirroring command enablement in the client:
// a grant made mid-session takes effect at the next login.
func RequireRole(roleName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := SessionFromContext(r.Context())
			if sess == nil || !sess.IsAuthenticated() {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
				return
			}
			if !sess.HasRole(roleName) {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing role "+roleName)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
