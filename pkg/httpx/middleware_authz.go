package httpx

import (
	"net/http"
	"slices"
)

// RequireRole lets the request through only when the principal set by
// AuthnMiddleware has one of the given roles.
func RequireRole(roles ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeBearerError(w, "missing bearer token")
				return
			}

			if !slices.Contains(roles, p.Role) {
				WriteEnvelope(w, http.StatusForbidden, "insufficient role", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
