package authsdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// API paths of the authentication service, relative to the base URL.
const (
	PathLogin   = "/auth/login"
	PathRefresh = "/auth/refresh"
	PathLogout  = "/auth/logout"
	PathProfile = "/auth/profile"

	PathDashboard = "/monitor/dashboard"
	PathUsers     = "/users"
)

// DefaultTimeout bounds every call made with the default HTTP client.
const DefaultTimeout = 10 * time.Second

// SDKClient talks to the authentication endpoints of the ops console API.
// It is stateless: tokens are passed in explicitly, which keeps the refresh
// call itself out of the authenticated pipeline.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new auth service client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// Login exchanges a username and password for a credential and identity.
// A 401 comes back wrapped with ErrCredentialsInvalid.
func (c *SDKClient) Login(ctx context.Context, username, password string) (Credential, *Identity, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, PathLogin, LoginRequest{
		Username: username,
		Password: password,
	}, "")
	if err != nil {
		return Credential{}, nil, err
	}

	var out LoginResponse
	if err := DecodeEnvelope(resp, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Unauthorized() {
			return Credential{}, nil, fmt.Errorf("%w: %w", ErrCredentialsInvalid, err)
		}
		return Credential{}, nil, fmt.Errorf("login failed: %w", err)
	}

	if out.AccessToken == "" {
		return Credential{}, nil, fmt.Errorf("login failed: response carried no access token")
	}

	identity := out.User
	return NewCredential(out.AccessToken, out.RefreshToken), &identity, nil
}

// Refresh exchanges a refresh token for a new pair. A 4xx answer, or a 2xx
// carrying an error envelope, is a rejection. 5xx answers are reported as
// transport failures so a flaky server does not end the session.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (Credential, error) {
	if refreshToken == "" {
		return Credential{}, fmt.Errorf("%w: no refresh token available", ErrRefreshRejected)
	}

	resp, err := c.doJSON(ctx, http.MethodPost, PathRefresh, RefreshRequest{
		RefreshToken: refreshToken,
	}, "")
	if err != nil {
		return Credential{}, err
	}

	var out RefreshResponse
	if err := DecodeEnvelope(resp, &out); err != nil {
		if errors.Is(err, ErrTransport) {
			return Credential{}, err
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode >= http.StatusInternalServerError {
			return Credential{}, fmt.Errorf("%w: refresh failed: %w", ErrTransport, err)
		}
		return Credential{}, fmt.Errorf("%w: %w", ErrRefreshRejected, err)
	}

	if out.AccessToken == "" {
		return Credential{}, fmt.Errorf("%w: response carried no access token", ErrRefreshRejected)
	}

	return NewCredential(out.AccessToken, out.RefreshToken), nil
}

// Logout asks the server to invalidate the session. It is best effort: the
// caller clears local state regardless of the outcome.
func (c *SDKClient) Logout(ctx context.Context, accessToken string) error {
	resp, err := c.doJSON(ctx, http.MethodPost, PathLogout, nil, accessToken)
	if err != nil {
		return err
	}
	return DecodeEnvelope(resp, nil)
}

// Profile fetches the identity for accessToken without going through the
// refresh pipeline.
func (c *SDKClient) Profile(ctx context.Context, accessToken string) (*Identity, error) {
	resp, err := c.doJSON(ctx, http.MethodGet, PathProfile, nil, accessToken)
	if err != nil {
		return nil, err
	}

	var identity Identity
	if err := DecodeEnvelope(resp, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}
