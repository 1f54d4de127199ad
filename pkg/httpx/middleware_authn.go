package httpx

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/opsconsole/pkg/slogx"
)

// TokenVerifier validates a raw bearer token and returns its principal.
type TokenVerifier interface {
	VerifyAccess(raw string) (Principal, error)
}

func AuthnMiddleware(v TokenVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := slogx.FromContext(r.Context())

			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				writeBearerError(w, "missing bearer token")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			p, err := v.VerifyAccess(raw)
			if err != nil {
				log.Warn("bearer token rejected", "err", err)
				writeBearerError(w, "token verification failed")
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithPrincipal(r.Context(), p)))
		})
	}
}

// RFC 6750 style challenge, with the body in the API envelope.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteEnvelope(w, http.StatusUnauthorized, desc, nil)
}
