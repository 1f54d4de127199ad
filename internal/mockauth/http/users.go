package http

import (
	"net/http"

	"github.com/aussiebroadwan/opsconsole/internal/mockauth/service"
	"github.com/aussiebroadwan/opsconsole/pkg/authsdk"
	"github.com/aussiebroadwan/opsconsole/pkg/httpx"
	"github.com/aussiebroadwan/opsconsole/pkg/slogx"
)

// AdminHandler serves the admin-only endpoints.
type AdminHandler struct {
	Users  *service.UserService
	Tokens *service.TokenService
}

// ListUsers serves GET /users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users := h.Users.List(r.Context())
	out := make([]authsdk.Identity, 0, len(users))
	for _, u := range users {
		out = append(out, u.Identity())
	}
	httpx.WriteEnvelope(w, http.StatusOK, "ok", out)
}

// ExpireTokens serves POST /admin/tokens/expire. Every outstanding access
// token stops working while refresh tokens stay valid, which sends all
// connected clients through a refresh at once.
func (h *AdminHandler) ExpireTokens(w http.ResponseWriter, r *http.Request) {
	n := h.Tokens.ExpireAccessTokens()
	slogx.FromContext(r.Context()).Info("access tokens expired", "count", n)
	httpx.WriteEnvelope(w, http.StatusOK, "ok", map[string]int{"expired": n})
}
