package httpx

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	domainauth "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/domain/auth"
	apperrors "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/errors"
)

// RouteClass says how the gate treats a path.
type RouteClass int

const (
	// RouteProtected requires a valid session. It is the default for unlisted paths.
	RouteProtected RouteClass = iota
	// RouteOptional attaches a session when one exists.
	RouteOptional
	// RoutePublic never looks at the session.
	RoutePublic
)

func (c RouteClass) String() string {
	switch c {
	case RoutePublic:
		return "public"
	case RouteOptional:
		return "optional"
	default:
		return "protected"
	}
}

// DefaultPublicRoutes are reachable without a session.
func DefaultPublicRoutes() []string {
	return []string{"/login", "/healthz", "/api/auth/login", "/api/auth/logout", "/static/*", "/favicon.ico"}
}

// DefaultOptionalRoutes attach a session when present.
func DefaultOptionalRoutes() []string {
	return []string{"/api/auth/session"}
}

// LoginPath is where unauthenticated page requests are sent.
const LoginPath = "/login"

// routeRule matches an exact path, or a prefix when written with a trailing "*".
type routeRule struct {
	path   string
	prefix bool
}

func (r routeRule) matches(path string) bool {
	if r.prefix {
		return strings.HasPrefix(path, r.path)
	}
	return path == r.path
}

func parseRules(patterns []string) []routeRule {
	rules := make([]routeRule, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.HasSuffix(p, "*") {
			rules = append(rules, routeRule{path: strings.TrimSuffix(p, "*"), prefix: true})
			continue
		}
		rules = append(rules, routeRule{path: p})
	}
	return rules
}

// RouteRules classifies request paths. Public rules win over optional ones.
type RouteRules struct {
	public   []routeRule
	optional []routeRule
}

// NewRouteRules builds RouteRules; nil lists use the defaults.
func NewRouteRules(public, optional []string) RouteRules {
	if public == nil {
		public = DefaultPublicRoutes()
	}
	if optional == nil {
		optional = DefaultOptionalRoutes()
	}
	return RouteRules{public: parseRules(public), optional: parseRules(optional)}
}

func (rr RouteRules) isZero() bool {
	return rr.public == nil && rr.optional == nil
}

// Classify returns the class for path.
func (rr RouteRules) Classify(path string) RouteClass {
	for _, r := range rr.public {
		if r.matches(path) {
			return RoutePublic
		}
	}
	for _, r := range rr.optional {
		if r.matches(path) {
			return RouteOptional
		}
	}
	return RouteProtected
}

// IsAPIPath reports whether path is under /api.
func IsAPIPath(path string) bool {
	return path == "/api" || strings.HasPrefix(path, "/api/")
}

// SessionReader is the part of SessionStore the gate needs.
type SessionReader interface {
	Get(r *http.Request) *domainauth.Session
}

// GateOptions configures Gate.
type GateOptions struct {
	Sessions SessionReader
	Rules    RouteRules
	Logger   *slog.Logger
}

// Gate enforces route classes. Protected API requests without a session get a 401
// UNAUTHORIZED envelope; protected pages redirect to /login?from=<original URI>.
func Gate(opts GateOptions) func(http.Handler) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "gate")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			class := opts.Rules.Classify(r.URL.Path)
			if class == RoutePublic {
				next.ServeHTTP(w, r)
				return
			}

			sess := opts.Sessions.Get(r)
			if sess != nil {
				r = r.WithContext(SetSessionInContext(r.Context(), sess))
				next.ServeHTTP(w, r)
				return
			}
			if class == RouteOptional {
				next.ServeHTTP(w, r)
				return
			}

			logger.DebugContext(r.Context(), "unauthenticated request to protected route", "path", r.URL.Path)
			if IsAPIPath(r.URL.Path) {
				WriteAppError(w, r, ErrorParams{Err: apperrors.Unauthorized("Authentication required")})
				return
			}
			redirectToLogin(w, r)
		})
	}
}

// redirectToLogin sends a page request to the login page, remembering where it was going.
func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := LoginPath + "?from=" + url.QueryEscape(safeRedirectPath(r.URL.RequestURI()))
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// safeRedirectPath ensures the provided redirect is a same-origin relative path
// starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(candidate, "//") {
		return "/"
	}
	return candidate
}

// securityHeaders are set on every response.
var securityHeaders = [][2]string{ //nolint:gochecknoglobals // read-only header table
	{"X-Frame-Options", "DENY"},
	{"X-Content-Type-Options", "nosniff"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=(), payment=()"},
	{"Content-Security-Policy", "frame-ancestors 'none'"},
}

// SecurityHeaders sets the fixed security headers before the handler runs.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range securityHeaders {
				h.Set(kv[0], kv[1])
			}
			next.ServeHTTP(w, r)
		})
	}
}
