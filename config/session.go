package config

import (
	"strings"
	"time"
)

// MinSecretBytes is the shortest accepted session or signing secret.
const MinSecretBytes = 32

// SessionConfig controls the session cookie and its expiry windows.
type SessionConfig struct {
	// Secret signs and encrypts the session cookie. Required, at least MinSecretBytes long.
	Secret string `env:"SESSION_SECRET"`

	CookieName   string `env:"SESSION_COOKIE_NAME"   envDefault:"portal_session"`
	CookieDomain string `env:"SESSION_COOKIE_DOMAIN" envDefault:""`

	// CookieInsecure drops the Secure attribute. Honoured only in dev mode.
	CookieInsecure bool `env:"SESSION_COOKIE_INSECURE" envDefault:"false"`

	// InactivityTimeout is the sliding window; AbsoluteTimeout caps it from login time.
	InactivityTimeout time.Duration `env:"SESSION_INACTIVITY_TIMEOUT" envDefault:"30m"`
	AbsoluteTimeout   time.Duration `env:"SESSION_ABSOLUTE_TIMEOUT"   envDefault:"8h"`
}

// Sanitize normalises cookie settings.
func (c *SessionConfig) Sanitize() {
	c.CookieName = strings.TrimSpace(c.CookieName)
	if c.CookieName == "" {
		c.CookieName = "portal_session"
	}
	c.CookieDomain = strings.TrimSpace(c.CookieDomain)
}

func (c *SessionConfig) validate(v *validator) {
	switch {
	case c.Secret == "":
		v.missingVar("SESSION_SECRET")
	case len(c.Secret) < MinSecretBytes:
		v.invalidVar("SESSION_SECRET")
	}
	if c.InactivityTimeout <= 0 {
		v.invalidVar("SESSION_INACTIVITY_TIMEOUT")
	}
	if c.AbsoluteTimeout <= 0 || c.AbsoluteTimeout < c.InactivityTimeout {
		v.invalidVar("SESSION_ABSOLUTE_TIMEOUT")
	}
}
