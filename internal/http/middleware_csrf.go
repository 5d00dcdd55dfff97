package httpx

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"

	apperrors "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/errors"
)

const (
	// DefaultCSRFCookieName is the default name for the CSRF cookie.
	DefaultCSRFCookieName = "portal_csrf"
	// DefaultCSRFHeaderName is the default name for the CSRF header (canonical form).
	DefaultCSRFHeaderName = "X-Csrf-Token"
	// DefaultCSRFTokenLength is the default length of the CSRF token in bytes.
	DefaultCSRFTokenLength = 32
)

// CSRFConfig holds configuration for CSRF protection middleware.
type CSRFConfig struct {
	CookieName   string
	HeaderName   string
	CookieDomain string
	// Exempt lists exact API paths that skip validation. Defaults to the login route,
	// which has no session yet and is protected by SameSite=Strict.
	Exempt []string
	// Insecure drops the Secure attribute, mirroring the session cookie.
	Insecure bool
}

// CSRFProtection guards state-changing /api/* requests with the double-submit cookie
// pattern. Every response without a token cookie gets one; POST, PUT, PATCH and DELETE
// under /api must echo it in the header. Failures are a FORBIDDEN envelope.
func CSRFProtection(cfg CSRFConfig) func(http.Handler) http.Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCSRFCookieName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultCSRFHeaderName
	}
	if cfg.Exempt == nil {
		cfg.Exempt = []string{"/api/auth/login"}
	}
	exempt := make(map[string]struct{}, len(cfg.Exempt))
	for _, p := range cfg.Exempt {
		exempt[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := getCSRFToken(r, cfg.CookieName)
			if token == "" {
				fresh, err := generateCSRFToken(DefaultCSRFTokenLength)
				if err != nil {
					WriteAppError(w, r, ErrorParams{Err: apperrors.Wrap(err, apperrors.ErrCodeServer, "Internal server error")})
					return
				}
				setCSRFCookie(w, cfg, fresh)
				token = fresh
			}

			if requiresCSRFValidation(r) {
				if _, ok := exempt[r.URL.Path]; !ok && !validateCSRFToken(r, token, cfg.HeaderName) {
					WriteAppError(w, r, ErrorParams{Err: apperrors.Forbidden("CSRF token validation failed")})
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// requiresCSRFValidation returns true for state-changing methods on API paths.
func requiresCSRFValidation(r *http.Request) bool {
	if !IsAPIPath(r.URL.Path) {
		return false
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	default:
		return true
	}
}

func getCSRFToken(r *http.Request, cookieName string) string {
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// generateCSRFToken generates a cryptographically secure random CSRF token.
// Returns an error if random generation fails; there is no predictable fallback.
func generateCSRFToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("csrf token generation failed: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func setCSRFCookie(w http.ResponseWriter, cfg CSRFConfig, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    token,
		Path:     "/",
		Domain:   cfg.CookieDomain,
		HttpOnly: false, // the frontend reads it to fill the header
		Secure:   !cfg.Insecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// validateCSRFToken compares the header against the cookie in constant time.
func validateCSRFToken(r *http.Request, cookieToken, header string) bool {
	if cookieToken == "" {
		return false
	}
	headerToken := r.Header.Get(header)
	if headerToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(headerToken), []byte(cookieToken)) == 1
}
