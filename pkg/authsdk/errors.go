package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/opsconsole/pkg/httpx"
)

// ============================================================================
// Error taxonomy
// ============================================================================

var (
	// ErrTransport wraps network, DNS and timeout failures. The pipeline never
	// retries these; they go straight back to the caller.
	ErrTransport = errors.New("authsdk: transport error")

	// ErrAuthorizationExpired marks a 401 on a regular API call. It drives the
	// refresh protocol and is only seen by callers when no refresh could help.
	ErrAuthorizationExpired = errors.New("authsdk: authorization expired")

	// ErrRefreshRejected means the refresh call itself was refused. Terminal:
	// the session is logged out.
	ErrRefreshRejected = errors.New("authsdk: refresh rejected")

	// ErrCredentialsInvalid means the login call was refused. It never touches
	// an existing session.
	ErrCredentialsInvalid = errors.New("authsdk: invalid credentials")

	// ErrStorageUnavailable marks a credential persistence failure. Non-fatal:
	// the session carries on in memory.
	ErrStorageUnavailable = errors.New("authsdk: credential storage unavailable")

	// ErrRefreshTimeout is returned to a request that waited too long for an
	// in-flight refresh. Terminal, like ErrRefreshRejected.
	ErrRefreshTimeout = errors.New("authsdk: timed out waiting for token refresh")

	// ErrNotAuthenticated is returned when an unauthenticated request gets a
	// 401; there is no refresh token to try.
	ErrNotAuthenticated = errors.New("authsdk: not authenticated")

	// ErrLoggedOut is returned to requests still queued when the session was
	// logged out underneath them.
	ErrLoggedOut = errors.New("authsdk: session logged out")
)

// IsTerminal reports whether err ends the session and needs a fresh login.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrRefreshRejected) ||
		errors.Is(err, ErrRefreshTimeout) ||
		errors.Is(err, ErrLoggedOut)
}

// ============================================================================
// APIError
// ============================================================================

// APIError is a non-success response from the API, decoded from the
// {code, message} envelope. It is used by the client to report errors and by
// the mock server to write them.
type APIError struct {
	// StatusCode is the HTTP status code of the response.
	StatusCode int `json:"-"`

	// Code is the envelope code (mirrors the HTTP status for this API).
	Code int `json:"code"`

	// Message is the human readable message from the server.
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}

// Unauthorized reports whether the error is a 401-class failure.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.Code == http.StatusUnauthorized
}

// WriteError writes the error as an envelope response.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, e.StatusCode, map[string]any{
		"code":    e.Code,
		"message": e.Message,
	})
}

// NewAPIError creates an APIError whose envelope code mirrors the HTTP status.
func NewAPIError(statusCode int, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Code:       statusCode,
		Message:    message,
	}
}

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// parseErrorResponse turns a non-success response into an *APIError. It
// understands the envelope and falls back to the status text for anything
// else (proxies, load balancers).
func parseErrorResponse(resp *http.Response, body []byte) *APIError {
	var env Envelope
	if err := json.Unmarshal(body, &env); err == nil && (env.Code != 0 || env.Message != "") {
		code := env.Code
		if code == 0 {
			code = resp.StatusCode
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       code,
			Message:    env.Message,
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       resp.StatusCode,
		Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
