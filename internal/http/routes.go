package httpx

import (
	"log/slog"
	"net/http"

	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/domain/rbac"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/observability/metrics"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/service"
)

// RouterServices holds the services the HTTP router dispatches to.
type RouterServices struct {
	Auth     Authenticator
	Gateway  Gateway
	Sessions *SessionStore
}

// RouterSettings holds the HTTP-level settings.
type RouterSettings struct {
	Rules     RouteRules
	CSRF      *CSRFConfig // nil disables the CSRF guard
	StaticDir string      // empty disables frontend serving
	Config    ConfigReport
	Routes    []ResourceRoute // nil uses DefaultResourceRoutes
	Dev       bool
}

// RouterOptions groups everything NewRouter needs.
type RouterOptions struct {
	Services RouterServices
	Settings RouterSettings
	Support  RouterSupport
}

// RouterSupport groups observability collaborators.
type RouterSupport struct {
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// NewRouter creates the HTTP handler: routes behind the middleware chain
// Correlation → Logging → Recover → Metrics → SecurityHeaders → CSRF → Gate.
func NewRouter(opts RouterOptions) http.Handler {
	svc := opts.Services
	if svc.Auth == nil || svc.Gateway == nil || svc.Sessions == nil {
		panic("NewRouter: Auth, Gateway and Sessions are required")
	}
	set := opts.Settings
	logger := opts.Support.Logger
	if logger == nil {
		logger = slog.Default().With("component", "http")
	}

	mux := http.NewServeMux()

	health := &HealthHandlers{Config: set.Config}
	mux.HandleFunc("GET /healthz", health.Health)
	mux.HandleFunc("HEAD /healthz", health.Health)
	mux.Handle("GET /api/admin/config-check",
		requirePermission(permissionGuard{Gateway: svc.Gateway, Sessions: svc.Sessions, Dev: set.Dev}, rbac.ActionConfigRead)(http.HandlerFunc(health.ConfigCheck)))

	registerAuthRoutes(mux, &AuthHandlers{
		Svc:      svc.Auth,
		Sessions: svc.Sessions,
		Policy:   svc.Gateway.Policy(),
		Dev:      set.Dev,
		Logger:   logger,
	})
	registerResourceRoutes(mux, &ResourceHandlers{
		Gateway:  svc.Gateway,
		Sessions: svc.Sessions,
		Dev:      set.Dev,
		Logger:   logger,
	}, set.Routes)

	mux.HandleFunc("/api/", apiNotFound)
	if set.StaticDir != "" {
		mux.Handle("/", newFrontendHandler(set.StaticDir))
	}

	rules := set.Rules
	if rules.isZero() {
		rules = NewRouteRules(nil, nil)
	}

	var csrf Middleware
	if set.CSRF != nil {
		csrf = CSRFProtection(*set.CSRF)
	}

	return Chain(mux,
		Correlation(),
		Logging(logger),
		Recover(logger),
		Metrics(opts.Support.Metrics),
		SecurityHeaders(),
		csrf,
		Gate(GateOptions{Sessions: svc.Sessions, Rules: rules, Logger: logger}),
	)
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
	mux.HandleFunc("GET /api/auth/session", h.Session)
}

func registerResourceRoutes(mux *http.ServeMux, h *ResourceHandlers, routes []ResourceRoute) {
	if routes == nil {
		routes = DefaultResourceRoutes()
	}
	for _, rt := range routes {
		mux.Handle(rt.Pattern(), h.Handle(rt))
	}
}

// permissionGuard groups what requirePermission needs.
type permissionGuard struct {
	Gateway  Gateway
	Sessions Sessions
	Dev      bool
}

// requirePermission guards a local handler with the same check the proxied routes use and
// slides the session forward once the check passes.
func requirePermission(g permissionGuard, action rbac.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := GetSessionFromContext(r.Context())
			err := g.Gateway.Authorize(r.Context(), service.AuthorizeInput{
				Session: sess,
				Action:  action,
				Route:   r.URL.Path,
			})
			if err != nil {
				WriteAppError(w, r, ErrorParams{Err: err, Dev: g.Dev})
				return
			}
			if g.Sessions != nil {
				sess = g.Sessions.Refresh(w, r, sess)
				r = r.WithContext(SetSessionInContext(r.Context(), sess))
			}
			next.ServeHTTP(w, r)
		})
	}
}
