package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/opsconsole/internal/mockauth/service"
	"github.com/aussiebroadwan/opsconsole/pkg/authsdk"
	"github.com/aussiebroadwan/opsconsole/pkg/httpx"
	"github.com/aussiebroadwan/opsconsole/pkg/slogx"
)

// AuthHandler serves the /auth endpoints.
type AuthHandler struct {
	Users   *service.UserService
	Tokens  *service.TokenService
	Metrics *service.Metrics
}

// Login serves POST /auth/login. Unknown users and bad passwords both get a
// 401 so usernames cannot be probed.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		authsdk.NewAPIError(http.StatusBadRequest, "username and password are required").WriteError(w)
		return
	}

	user, err := h.Users.Authenticate(ctx, req.Username, req.Password)
	switch {
	case errors.Is(err, service.ErrUserDisabled):
		h.Metrics.RecordLogin("disabled")
		authsdk.NewAPIError(http.StatusForbidden, err.Error()).WriteError(w)
		return
	case err != nil:
		h.Metrics.RecordLogin("invalid")
		log.Info("login rejected", "username", req.Username)
		authsdk.NewAPIError(http.StatusUnauthorized, service.ErrInvalidCredentials.Error()).WriteError(w)
		return
	}

	pair, err := h.Tokens.Issue(ctx, user)
	if err != nil {
		log.Error("failed to issue tokens", "user_id", user.ID, "err", err)
		authsdk.NewAPIError(http.StatusInternalServerError, "failed to issue tokens").WriteError(w)
		return
	}

	h.Metrics.RecordLogin("ok")
	log.Info("login succeeded", "user_id", user.ID, "username", user.Username)

	httpx.WriteEnvelope(w, http.StatusOK, "login successful", authsdk.LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user.Identity(),
	})
}

// Refresh serves POST /auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		authsdk.NewAPIError(http.StatusBadRequest, "refresh_token is required").WriteError(w)
		return
	}

	pair, err := h.Tokens.Refresh(ctx, req.RefreshToken)
	if err != nil {
		log.Info("refresh rejected", "err", err)
		authsdk.NewAPIError(http.StatusUnauthorized, "invalid refresh token").WriteError(w)
		return
	}

	httpx.WriteEnvelope(w, http.StatusOK, "token refreshed", authsdk.RefreshResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Logout serves POST /auth/logout. It requires a valid access token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, ok := httpx.PrincipalFromContext(ctx)
	if !ok {
		authsdk.NewAPIError(http.StatusUnauthorized, "missing bearer token").WriteError(w)
		return
	}

	h.Tokens.Revoke(ctx, p)
	h.Metrics.RecordLogout()
	slogx.FromContext(ctx).Info("logout", "user_id", p.UserID)

	httpx.WriteEnvelope(w, http.StatusOK, "logout successful", nil)
}

// Profile serves GET /auth/profile.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, ok := httpx.PrincipalFromContext(ctx)
	if !ok {
		authsdk.NewAPIError(http.StatusUnauthorized, "missing bearer token").WriteError(w)
		return
	}

	identity, err := h.Tokens.IdentityOf(ctx, p)
	if err != nil {
		authsdk.NewAPIError(http.StatusNotFound, "user not found").WriteError(w)
		return
	}

	httpx.WriteEnvelope(w, http.StatusOK, "ok", identity)
}
