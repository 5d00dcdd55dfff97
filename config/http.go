package config

import (
	"strings"
	"time"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// PublicRoutes and OptionalAuthRoutes replace the built-in route classes when set.
	// A trailing "*" matches by prefix.
	PublicRoutes       []string `env:"HTTP_PUBLIC_ROUTES"        envSeparator:","`
	OptionalAuthRoutes []string `env:"HTTP_OPTIONAL_AUTH_ROUTES" envSeparator:","`

	// CSRFEnabled turns on the double-submit token check for state-changing /api calls.
	CSRFEnabled bool `env:"HTTP_CSRF_ENABLED" envDefault:"false"`

	// StaticDir serves a built frontend (index.html plus static/) when set.
	StaticDir string `env:"HTTP_STATIC_DIR" envDefault:""`

	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT"     envDefault:"30s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT"    envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	h.Addr = strings.TrimSpace(h.Addr)
	if h.Addr == "" {
		h.Addr = ":8080"
	}
	h.StaticDir = strings.TrimSpace(h.StaticDir)
	h.PublicRoutes = trimList(h.PublicRoutes)
	h.OptionalAuthRoutes = trimList(h.OptionalAuthRoutes)
	if h.ReadTimeout <= 0 {
		h.ReadTimeout = 30 * time.Second
	}
	if h.WriteTimeout <= 0 {
		h.WriteTimeout = 30 * time.Second
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 10 * time.Second
	}
}

// trimList trims entries and drops empty ones. An all-empty list becomes nil so callers
// fall back to their defaults.
func trimList(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
