package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	domainaudit "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/domain/audit"
	domainauth "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/domain/auth"
	apperrors "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/errors"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/observability/metrics"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/ports"
)

// Backend actions used by the auth flow.
const (
	BackendActionLogin  = "auth.login"
	BackendActionLogout = "auth.logout"
)

// Credential limits.
const (
	MaxUsernameLength = 128
	MaxPasswordLength = 256
)

const (
	metricEventLogin  = "login"
	metricEventLogout = "logout"
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Backend ports.BackendClient // Required
	Roles   ports.RoleMapper    // Required
	Support AuthSupport         // Optional collaborators
}

// AuthSupport groups optional AuthService collaborators.
type AuthSupport struct {
	Revocations ports.RevocationStore // nil disables revocation on logout
	Audit       ports.AuditRecorder
	Metrics     *metrics.Metrics
	Fields      LoginFields // zero value uses DefaultLoginFields
	Logger      *slog.Logger
}

// AuthService authenticates users against the backend and ends their sessions.
// It never creates cookies; the HTTP layer turns a LoginResult into a session.
type AuthService struct {
	backend     ports.BackendClient
	roles       ports.RoleMapper
	revocations ports.RevocationStore
	audit       ports.AuditRecorder
	metrics     *metrics.Metrics
	extract     *loginExtractor
	logger      *slog.Logger
}

// NewAuthService constructs a new AuthService.
// It panics if a required dependency is nil or the login field expressions do not compile.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	if opts.Backend == nil {
		panic("AuthService: Backend is required")
	}
	if opts.Roles == nil {
		panic("AuthService: Roles is required")
	}
	fields := opts.Support.Fields
	if fields == (LoginFields{}) {
		fields = DefaultLoginFields()
	}
	extract, err := fields.compile()
	if err != nil {
		panic(fmt.Sprintf("AuthService: %v", err))
	}
	logger := opts.Support.Logger
	if logger == nil {
		logger = slog.Default().With("component", "auth_service")
	}
	return &AuthService{
		backend:     opts.Backend,
		roles:       opts.Roles,
		revocations: opts.Support.Revocations,
		audit:       opts.Support.Audit,
		metrics:     opts.Support.Metrics,
		extract:     extract,
		logger:      logger,
	}
}

// LoginInput carries the submitted credentials and the route they arrived on.
type LoginInput struct {
	Username string
	Password string
	Route    string
}

// LoginResult is an authenticated user with the backend token to keep in the session.
type LoginResult struct {
	User         domainauth.User
	BackendToken string
}

// Login validates credentials, authenticates them with the backend and maps the backend
// role to a portal role. Bad credentials are always AUTH_FAILED with the same message.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	username := strings.TrimSpace(in.Username)
	if err := validateCredentials(username, in.Password); err != nil {
		return nil, err
	}

	resp, err := s.backend.Call(ctx, ports.BackendCall{
		Action:  BackendActionLogin,
		Payload: map[string]string{"username": username, "password": in.Password},
	})
	if err != nil {
		s.loginFailed(ctx, username, "", in.Route, string(apperrors.GetCode(err)))
		if apperrors.IsAuthFailed(err) || apperrors.IsUnauthorized(err) {
			return nil, apperrors.AuthFailed()
		}
		return nil, err
	}

	data, err := s.extract.extract(resp.Data)
	if err != nil {
		s.loginFailed(ctx, username, "", in.Route, "invalid login response")
		return nil, apperrors.Wrap(err, apperrors.ErrCodeServer, "Invalid response from backend service")
	}

	role, ok := s.roles.Map(data.Role)
	if !ok {
		s.loginFailed(ctx, username, data.Role, in.Route, "unmapped backend role")
		return nil, apperrors.Forbidden("Your account has no portal role")
	}

	user := domainauth.User{
		Username:    username,
		Role:        role,
		DisplayName: data.DisplayName,
		Email:       data.Email,
	}
	if data.Username != "" {
		user.Username = data.Username
	}

	s.metrics.AuthEvent(metricEventLogin, metrics.ResultSuccess)
	s.record(ctx, domainaudit.Event{
		Kind:  domainaudit.KindLoginSucceeded,
		Actor: user.Username,
		Role:  string(role),
		Route: in.Route,
	})
	s.logger.InfoContext(ctx, "login succeeded", "username", user.Username, "role", role)
	return &LoginResult{User: user, BackendToken: data.Token}, nil
}

func validateCredentials(username, password string) error {
	switch {
	case username == "":
		return apperrors.ValidationField("username", "Username is required")
	case password == "":
		return apperrors.ValidationField("password", "Password is required")
	case utf8.RuneCountInString(username) > MaxUsernameLength:
		return apperrors.ValidationField("username", fmt.Sprintf("Username must be at most %d characters", MaxUsernameLength))
	case utf8.RuneCountInString(password) > MaxPasswordLength:
		return apperrors.ValidationField("password", fmt.Sprintf("Password must be at most %d characters", MaxPasswordLength))
	}
	return nil
}

func (s *AuthService) loginFailed(ctx context.Context, username, backendRole, route, reason string) {
	s.metrics.AuthEvent(metricEventLogin, metrics.ResultError)
	s.record(ctx, domainaudit.Event{
		Kind:   domainaudit.KindLoginFailed,
		Actor:  username,
		Role:   backendRole,
		Route:  route,
		Detail: reason,
	})
	s.logger.InfoContext(ctx, "login failed", "username", username, "reason", reason)
}

// LogoutInput identifies the session being ended.
type LogoutInput struct {
	Session *domainauth.Session
	// RevokeUntil is the session's absolute deadline; the deny-list entry lives until then.
	RevokeUntil time.Time
	Route       string
}

// Logout ends the backend session and revokes the local one. Every step is best effort:
// failures are logged and the caller always proceeds to clear the cookie.
func (s *AuthService) Logout(ctx context.Context, in LogoutInput) {
	sess := in.Session
	if sess == nil {
		return
	}

	result := metrics.ResultSuccess
	if sess.BackendToken != "" {
		if _, err := s.backend.Call(ctx, ports.BackendCall{
			Action:    BackendActionLogout,
			AuthToken: sess.BackendToken,
		}); err != nil {
			result = metrics.ResultError
			s.logger.WarnContext(ctx, "backend logout failed", "username", sess.User.Username, "error", err)
		}
	}
	if s.revocations != nil && sess.ID != "" {
		if err := s.revocations.Revoke(ctx, sess.ID, in.RevokeUntil); err != nil {
			result = metrics.ResultError
			s.logger.WarnContext(ctx, "session revocation failed", "username", sess.User.Username, "error", err)
		}
	}

	s.metrics.AuthEvent(metricEventLogout, result)
	s.record(ctx, domainaudit.Event{
		Kind:  domainaudit.KindLogout,
		Actor: sess.User.Username,
		Role:  string(sess.User.Role),
		Route: in.Route,
	})
}

func (s *AuthService) record(ctx context.Context, ev domainaudit.Event) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, ev)
}
