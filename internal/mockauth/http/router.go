package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/opsconsole/internal/mockauth/service"
	"github.com/aussiebroadwan/opsconsole/pkg/authsdk"
	"github.com/aussiebroadwan/opsconsole/pkg/httpx"
	"github.com/aussiebroadwan/opsconsole/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// APIPrefix is where the API is mounted; clients use http://host:port/api
// as their base URL.
const APIPrefix = "/api"

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	gatherer     prometheus.Gatherer

	UserService  *service.UserService
	TokenService *service.TokenService
	Metrics      *service.Metrics
	Servers      int

	// LoginLimit throttles POST /auth/login per client IP.
	LoginLimit httpx.RateLimitConfig
}

func NewRouter(buildVersion string, gatherer prometheus.Gatherer, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		gatherer:     gatherer,
		Servers:      12,
		LoginLimit:   httpx.LoginLimit,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerMonitor()
	r.registerAdmin()
	r.registerSystem()
}

// ServeHTTP applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) authn() httpx.Middleware {
	return httpx.AuthnMiddleware(r.TokenService)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		Users:   r.UserService,
		Tokens:  r.TokenService,
		Metrics: r.Metrics,
	}

	r.Mux.Handle("POST "+APIPrefix+authsdk.PathLogin,
		httpx.Chain(http.HandlerFunc(h.Login),
			httpx.RateLimitByIP(r.LoginLimit),
		),
	)
	r.Mux.Handle("POST "+APIPrefix+authsdk.PathRefresh, http.HandlerFunc(h.Refresh))
	r.Mux.Handle("POST "+APIPrefix+authsdk.PathLogout,
		httpx.Chain(http.HandlerFunc(h.Logout), r.authn()),
	)
	r.Mux.Handle("GET "+APIPrefix+authsdk.PathProfile,
		httpx.Chain(http.HandlerFunc(h.Profile), r.authn()),
	)
}

func (r *Router) registerMonitor() {
	h := &MonitorHandler{Servers: r.Servers}

	r.Mux.Handle("GET "+APIPrefix+authsdk.PathDashboard,
		httpx.Chain(http.HandlerFunc(h.Dashboard), r.authn()),
	)
}

func (r *Router) registerAdmin() {
	h := &AdminHandler{
		Users:  r.UserService,
		Tokens: r.TokenService,
	}
	admin := string(authsdk.RoleAdmin)

	r.Mux.Handle("GET "+APIPrefix+authsdk.PathUsers,
		httpx.Chain(http.HandlerFunc(h.ListUsers), r.authn(), httpx.RequireRole(admin)),
	)
	r.Mux.Handle("POST "+APIPrefix+"/admin/tokens/expire",
		httpx.Chain(http.HandlerFunc(h.ExpireTokens), r.authn(), httpx.RequireRole(admin)),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	if r.gatherer != nil {
		r.Mux.Handle("GET /metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))
	}
}
