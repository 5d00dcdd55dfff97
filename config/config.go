package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: role aliases and login response mapping
//   - backend.go: backend base URL, signing secret and transport limits
//   - database.go: Redis connection for the revocation deny-list
//   - http.go: HTTP server, route classes and CSRF
//   - observability.go: logging, metrics, tracing and audit
//   - session.go: session cookie and expiry windows
type AppConfig struct {
	// IsDev controls development mode behavior (error detail, insecure cookies allowed).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	HTTP    HTTPConfig
	Session SessionConfig
	Backend BackendConfig
	Auth    AuthConfig
	RBAC    RBACConfig

	// Revocation and Redis back the optional session deny-list.
	Revocation RevocationConfig
	Redis      RedisConfig `envPrefix:"REDIS_"`

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Session.Sanitize()
	c.Backend.Sanitize()
	c.Auth.Sanitize()
	c.RBAC.Sanitize()
	c.Revocation.Sanitize()
	c.Redis.Sanitize()
	c.Observability.Sanitize()

	// Check NODE_ENV for dev mode
	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// This is called by Sanitize() to ensure IsDev is set correctly.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// Validate reports every required variable that is unset and every variable whose value
// cannot be used. It returns nil when the configuration is complete. Values are never
// included in the report.
func (c *AppConfig) Validate() *ConfigError {
	var v validator
	c.Session.validate(&v)
	c.Backend.validate(&v)
	if c.Revocation.Enabled {
		c.Redis.validate(&v)
	}
	c.Observability.validate(&v)
	return v.result()
}
