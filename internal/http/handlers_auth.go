package httpx

import (
	"context"
	"log/slog"
	"net/http"

	domainauth "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/domain/auth"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/domain/rbac"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/service"
)

// Authenticator is the auth service surface the handlers use.
type Authenticator interface {
	Login(ctx context.Context, in service.LoginInput) (*service.LoginResult, error)
	Logout(ctx context.Context, in service.LogoutInput)
}

// Sessions is the cookie session surface the handlers use.
type Sessions interface {
	SessionReader
	Create(w http.ResponseWriter, r *http.Request, user domainauth.User, backendToken string) (*domainauth.Session, error)
	Refresh(w http.ResponseWriter, r *http.Request, sess *domainauth.Session) *domainauth.Session
	Destroy(w http.ResponseWriter, r *http.Request)
	Windows() domainauth.Windows
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc      Authenticator
	Sessions Sessions
	Policy   *rbac.Policy
	Dev      bool
	Logger   *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	User      domainauth.User `json:"user"`
	ExpiresAt int64           `json:"expiresAt"`
}

// sessionResponse is the body of GET /api/auth/session. Times are epoch milliseconds.
type sessionResponse struct {
	Authenticated bool             `json:"authenticated"`
	User          *domainauth.User `json:"user,omitempty"`
	Permissions   []rbac.Action    `json:"permissions,omitempty"`
	CreatedAt     int64            `json:"createdAt,omitempty"`
	ExpiresAt     int64            `json:"expiresAt,omitempty"`
}

// Login handles POST /api/auth/login. The backend token stays inside the cookie.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteAppError(w, r, ErrorParams{Err: err, Dev: h.Dev})
		return
	}

	result, err := h.Svc.Login(r.Context(), service.LoginInput{
		Username: req.Username,
		Password: req.Password,
		Route:    r.URL.Path,
	})
	if err != nil {
		WriteAppError(w, r, ErrorParams{Err: err, Upstream: true, Dev: h.Dev})
		return
	}

	sess, err := h.Sessions.Create(w, r, result.User, result.BackendToken)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "session create failed", "username", result.User.Username, "error", err)
		WriteAppError(w, r, ErrorParams{Err: err, Dev: h.Dev})
		return
	}

	WriteOK(w, r, loginResponse{User: sess.User, ExpiresAt: sess.ExpiresAt.UnixMilli()})
}

// Session handles GET /api/auth/session and slides the expiry of a live session.
func (h *AuthHandlers) Session(w http.ResponseWriter, r *http.Request) {
	sess := GetSessionFromContext(r.Context())
	if sess == nil {
		WriteOK(w, r, sessionResponse{Authenticated: false})
		return
	}

	sess = h.Sessions.Refresh(w, r, sess)
	user := sess.User
	WriteOK(w, r, sessionResponse{
		Authenticated: true,
		User:          &user,
		Permissions:   h.Policy.Permissions(user.Role),
		CreatedAt:     sess.CreatedAt.UnixMilli(),
		ExpiresAt:     sess.ExpiresAt.UnixMilli(),
	})
}

// Logout handles POST /api/auth/logout. It always clears the cookie and always succeeds.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if sess := h.Sessions.Get(r); sess != nil {
		h.Svc.Logout(r.Context(), service.LogoutInput{
			Session:     sess,
			RevokeUntil: sess.AbsoluteDeadline(h.Sessions.Windows()),
			Route:       r.URL.Path,
		})
	}
	h.Sessions.Destroy(w, r)
	WriteOK(w, r, nil)
}
