package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/clock"
	domainauth "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/domain/auth"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/ports"
)

// DefaultSessionCookieName is used when SessionCookieConfig.Name is empty.
const DefaultSessionCookieName = "portal_session"

// SessionCookieConfig controls the session cookie attributes and lifetime.
type SessionCookieConfig struct {
	Name    string
	Domain  string
	Windows domainauth.Windows
	// Insecure drops the Secure attribute. Only for local plain-HTTP development.
	Insecure bool
}

// SessionStoreSupport groups optional SessionStore collaborators.
type SessionStoreSupport struct {
	Revocations ports.RevocationStore // nil disables the deny-list check
	Clock       clock.Clock
	Logger      *slog.Logger
}

// SessionStoreOptions groups dependencies for SessionStore.
type SessionStoreOptions struct {
	Codec   ports.SessionCodec // Required
	Cookie  SessionCookieConfig
	Support SessionStoreSupport
}

// SessionStore keeps the whole session in a signed cookie. There is no server-side
// session table; the optional deny-list only records ids revoked before expiry.
type SessionStore struct {
	codec       ports.SessionCodec
	cookie      SessionCookieConfig
	revocations ports.RevocationStore
	clock       clock.Clock
	logger      *slog.Logger
}

// NewSessionStore constructs a SessionStore.
func NewSessionStore(opts SessionStoreOptions) *SessionStore {
	if opts.Codec == nil {
		panic("SessionStore: Codec is required")
	}
	cookie := opts.Cookie
	if cookie.Name == "" {
		cookie.Name = DefaultSessionCookieName
	}
	logger := opts.Support.Logger
	if logger == nil {
		logger = slog.Default().With("component", "session_store")
	}
	return &SessionStore{
		codec:       opts.Codec,
		cookie:      cookie,
		revocations: opts.Support.Revocations,
		clock:       clock.OrReal(opts.Support.Clock),
		logger:      logger,
	}
}

// Windows returns the configured expiry windows.
func (s *SessionStore) Windows() domainauth.Windows {
	return s.cookie.Windows
}

// CookieName returns the session cookie name.
func (s *SessionStore) CookieName() string {
	return s.cookie.Name
}

// Create starts a session for user and sets its cookie.
func (s *SessionStore) Create(w http.ResponseWriter, _ *http.Request, user domainauth.User, backendToken string) (*domainauth.Session, error) {
	sess := domainauth.NewSession(domainauth.NewSessionParams{
		ID:           uuid.NewString(),
		User:         user,
		BackendToken: backendToken,
		Now:          s.clock.Now(),
		Windows:      s.cookie.Windows,
	})
	if err := s.write(w, sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Get returns the request's session, or nil when there is none. Undecodable, expired and
// revoked cookies are all treated as absent; a failing deny-list lookup also yields nil.
func (s *SessionStore) Get(r *http.Request) *domainauth.Session {
	c, err := r.Cookie(s.cookie.Name)
	if err != nil || c.Value == "" {
		return nil
	}
	sess, err := s.codec.Decode(c.Value)
	if err != nil {
		s.logger.DebugContext(r.Context(), "session cookie rejected", "reason", err.Error())
		return nil
	}
	if !sess.Valid(s.clock.Now()) {
		return nil
	}
	if s.revocations != nil {
		revoked, err := s.revocations.IsRevoked(r.Context(), sess.ID)
		if err != nil {
			s.logger.WarnContext(r.Context(), "revocation lookup failed; treating session as absent", "error", err)
			return nil
		}
		if revoked {
			return nil
		}
	}
	return &sess
}

// Refresh slides the expiry forward, never past the absolute ceiling, and re-sets the
// cookie. A nil or expired session is left alone. The returned session is the one in effect.
func (s *SessionStore) Refresh(w http.ResponseWriter, r *http.Request, sess *domainauth.Session) *domainauth.Session {
	now := s.clock.Now()
	if sess == nil || !sess.Valid(now) {
		return sess
	}
	extended := sess.Extend(now, s.cookie.Windows)
	if err := s.write(w, extended); err != nil {
		s.logger.WarnContext(r.Context(), "session refresh failed", "error", err)
		return sess
	}
	return &extended
}

// Destroy clears the session cookie.
func (s *SessionStore) Destroy(w http.ResponseWriter, _ *http.Request) {
	c := s.baseCookie()
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0).UTC()
	http.SetCookie(w, c)
}

func (s *SessionStore) write(w http.ResponseWriter, sess domainauth.Session) error {
	token, err := s.codec.Encode(sess)
	if err != nil {
		return err
	}
	c := s.baseCookie()
	c.Value = token
	// The cookie never outlives the absolute deadline.
	remaining := sess.AbsoluteDeadline(s.cookie.Windows).Sub(s.clock.Now())
	maxAge := int((remaining + time.Second - 1) / time.Second)
	if maxAge < 1 {
		maxAge = 1
	}
	c.MaxAge = maxAge
	http.SetCookie(w, c)
	return nil
}

func (s *SessionStore) baseCookie() *http.Cookie {
	return &http.Cookie{
		Name:     s.cookie.Name,
		Path:     "/",
		Domain:   s.cookie.Domain,
		HttpOnly: true,
		Secure:   !s.cookie.Insecure,
		SameSite: http.SameSiteStrictMode,
	}
}
