package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// BackendMode selects where backend calls go.
type BackendMode string

const (
	// BackendModeRemote calls BACKEND_BASE_URL.
	BackendModeRemote BackendMode = "remote"
	// BackendModeDev serves the backend protocol in-process (development only).
	BackendModeDev BackendMode = "dev"
)

// BackendConfig contains the backend proxy configuration.
type BackendConfig struct {
	Mode BackendMode `env:"BACKEND_MODE" envDefault:"remote"`

	// BaseURL is the backend deployment URL. Required in remote mode.
	BaseURL string `env:"BACKEND_BASE_URL"`

	// SigningSecret is shared with the backend and signs every call. Required.
	SigningSecret string `env:"BACKEND_SIGNING_SECRET"`

	Timeout      time.Duration `env:"BACKEND_TIMEOUT"       envDefault:"15s"`
	MaxRedirects int           `env:"BACKEND_MAX_REDIRECTS" envDefault:"5"`

	// RedirectDomains lists registrable domains a redirect may leave the base host for.
	RedirectDomains []string `env:"BACKEND_REDIRECT_DOMAINS" envDefault:"googleusercontent.com" envSeparator:","`

	// SignatureSkew bounds the timestamp window the dev backend accepts.
	SignatureSkew time.Duration `env:"BACKEND_SIGNATURE_SKEW" envDefault:"5m"`

	// Login holds JMESPath expressions over the auth.login response data.
	Login LoginExprConfig `envPrefix:"BACKEND_LOGIN_"`

	// DevUsers configures the in-process backend, "user:password:ROLE[:Display Name[:email]]"
	// entries separated by ";".
	DevUsers string `env:"BACKEND_DEV_USERS" envDefault:""`
}

// LoginExprConfig locates the login result fields in the backend response.
type LoginExprConfig struct {
	TokenExpr       string `env:"TOKEN_EXPR"        envDefault:"token"`
	UsernameExpr    string `env:"USERNAME_EXPR"     envDefault:"user.username"`
	RoleExpr        string `env:"ROLE_EXPR"         envDefault:"user.role"`
	DisplayNameExpr string `env:"DISPLAY_NAME_EXPR" envDefault:"user.displayName"`
	EmailExpr       string `env:"EMAIL_EXPR"        envDefault:"user.email"`
}

// DevUser is one account for the in-process backend.
type DevUser struct {
	Username    string
	Password    string
	Role        string
	DisplayName string
	Email       string
}

// Sanitize normalises backend settings.
func (c *BackendConfig) Sanitize() {
	c.Mode = BackendMode(strings.ToLower(strings.TrimSpace(string(c.Mode))))
	if c.Mode == "" {
		c.Mode = BackendModeRemote
	}
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	c.RedirectDomains = trimList(c.RedirectDomains)
	if c.MaxRedirects < 0 {
		c.MaxRedirects = 0
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.SignatureSkew <= 0 {
		c.SignatureSkew = 5 * time.Minute
	}
}

// IsDevMode reports whether the in-process backend is selected.
func (c *BackendConfig) IsDevMode() bool {
	return c.Mode == BackendModeDev
}

// ParseDevUsers decodes DevUsers.
func (c *BackendConfig) ParseDevUsers() ([]DevUser, error) {
	var users []DevUser
	for _, entry := range strings.Split(c.DevUsers, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 5)
		if len(parts) < 3 {
			return nil, fmt.Errorf("dev user entry %d: want user:password:ROLE", len(users)+1)
		}
		u := DevUser{
			Username: strings.TrimSpace(parts[0]),
			Password: parts[1],
			Role:     strings.TrimSpace(parts[2]),
		}
		if len(parts) > 3 {
			u.DisplayName = strings.TrimSpace(parts[3])
		}
		if len(parts) > 4 {
			u.Email = strings.TrimSpace(parts[4])
		}
		if u.Username == "" || u.Password == "" || u.Role == "" {
			return nil, fmt.Errorf("dev user entry %d: empty field", len(users)+1)
		}
		users = append(users, u)
	}
	if len(users) == 0 {
		return nil, errors.New("no dev users configured")
	}
	return users, nil
}

func (c *BackendConfig) validate(v *validator) {
	switch c.Mode {
	case BackendModeRemote:
		if c.BaseURL == "" {
			v.missingVar("BACKEND_BASE_URL")
		} else if !validBaseURL(c.BaseURL) {
			v.invalidVar("BACKEND_BASE_URL")
		}
	case BackendModeDev:
		if strings.TrimSpace(c.DevUsers) == "" {
			v.missingVar("BACKEND_DEV_USERS")
		} else if _, err := c.ParseDevUsers(); err != nil {
			v.invalidVar("BACKEND_DEV_USERS")
		}
	default:
		v.invalidVar("BACKEND_MODE")
	}
	if c.SigningSecret == "" {
		v.missingVar("BACKEND_SIGNING_SECRET")
	}
	if c.Login.TokenExpr == "" {
		v.missingVar("BACKEND_LOGIN_TOKEN_EXPR")
	}
	if c.Login.RoleExpr == "" {
		v.missingVar("BACKEND_LOGIN_ROLE_EXPR")
	}
}

func validBaseURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
