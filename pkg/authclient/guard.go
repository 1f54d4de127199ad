package authclient

import "github.com/aussiebroadwan/opsconsole/pkg/authsdk"

// Routes the guard redirects to.
const (
	LoginRoute   = "/login"
	LandingRoute = "/dashboard"
)

// Route describes a navigation target and its access requirements.
type Route struct {
	Path          string
	RequiresAuth  bool
	RequiresAdmin bool
}

// AccessChecker is the read-only view of the session a guard needs.
type AccessChecker interface {
	IsAuthenticated() bool
	HasRole(role authsdk.Role) bool
}

// Guard decides whether route may be entered. It returns "" to proceed or
// the path to redirect to.
func Guard(a AccessChecker, route Route) string {
	switch {
	case route.RequiresAuth && !a.IsAuthenticated():
		return LoginRoute
	case route.RequiresAdmin && !a.HasRole(authsdk.RoleAdmin):
		return LandingRoute
	case route.Path == LoginRoute && a.IsAuthenticated():
		return LandingRoute
	default:
		return ""
	}
}
