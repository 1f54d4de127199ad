package authsdk

import (
	"encoding/json"
	"time"
)

// ============================================================================
// Envelope
// ============================================================================

// CodeOK is the envelope code the API uses for a successful call. Any other
// code is a business error even when the HTTP status is 2xx.
const CodeOK = 200

// Envelope is the body shape of every API response: {code, message, data}.
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ============================================================================
// Identity
// ============================================================================

// Role is the coarse authorization level attached to an Identity.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Identity is the user record returned by login and /auth/profile. It is
// replaced wholesale, never patched field by field.
type Identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	Status   int    `json:"status"` // 1 = active, 0 = disabled
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// ============================================================================
// Credential
// ============================================================================

// Credential is the access/refresh token pair held by a session.
type Credential struct {
	// AccessToken is attached as a bearer token to outbound requests.
	AccessToken string

	// RefreshToken is used solely to mint a new pair.
	RefreshToken string

	// ExpiresAt is a hint decoded from the access token's exp claim. Nil when
	// the token is opaque or carries no exp.
	ExpiresAt *time.Time
}

// IsZero reports whether the credential carries no access token.
func (c Credential) IsZero() bool { return c.AccessToken == "" }

// Expired reports whether the expiry hint has passed. Credentials without a
// hint are never considered expired; the server decides with a 401.
func (c Credential) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// ============================================================================
// Auth endpoint payloads
// ============================================================================

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the data of a successful POST /auth/login.
type LoginResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	User         Identity `json:"user"`
}

// RefreshRequest is the body of POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshResponse is the data of a successful POST /auth/refresh.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// ============================================================================
// Sample protected resources
// ============================================================================

// HealthResponse is returned by /livez.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}

// SystemStats summarises the monitored fleet.
type SystemStats struct {
	TotalServers   int       `json:"total_servers"`
	OnlineServers  int       `json:"online_servers"`
	OfflineServers int       `json:"offline_servers"`
	Timestamp      time.Time `json:"timestamp"`
}

type Alert struct {
	ID      int64     `json:"id"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

type Activity struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Time        time.Time `json:"time"`
}

// DashboardData is the data of GET /monitor/dashboard.
type DashboardData struct {
	Stats            SystemStats `json:"stats"`
	Alerts           []Alert     `json:"alerts"`
	RecentActivities []Activity  `json:"recent_activities"`
}
