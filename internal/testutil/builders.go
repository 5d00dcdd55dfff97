package testutil

import (
	"time"

	"github.com/google/uuid"

	domainauth "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/domain/auth"
)

// DefaultWindows mirrors the production session defaults.
var DefaultWindows = domainauth.Windows{Inactivity: 30 * time.Minute, Absolute: 8 * time.Hour}

// SessionBuilder provides a fluent interface for building test sessions.
type SessionBuilder struct {
	params domainauth.NewSessionParams
}

// NewSession creates a new session builder with sensible defaults.
func NewSession() *SessionBuilder {
	return &SessionBuilder{
		params: domainauth.NewSessionParams{
			ID: uuid.NewString(),
			User: domainauth.User{
				Username:    "analyst1",
				Role:        domainauth.RoleAnalyst,
				DisplayName: "Analyst One",
				Email:       "analyst1@example.com",
			},
			BackendToken: "backend-token-analyst1",
			Now:          TestTime(),
			Windows:      DefaultWindows,
		},
	}
}

// WithRole sets the user's role.
func (b *SessionBuilder) WithRole(role domainauth.Role) *SessionBuilder {
	b.params.User.Role = role
	return b
}

// WithUsername sets the username.
func (b *SessionBuilder) WithUsername(username string) *SessionBuilder {
	b.params.User.Username = username
	return b
}

// WithBackendToken sets the backend credential carried by the session.
func (b *SessionBuilder) WithBackendToken(token string) *SessionBuilder {
	b.params.BackendToken = token
	return b
}

// WithID sets the session id.
func (b *SessionBuilder) WithID(id string) *SessionBuilder {
	b.params.ID = id
	return b
}

// At sets the creation time.
func (b *SessionBuilder) At(now time.Time) *SessionBuilder {
	b.params.Now = now
	return b
}

// WithWindows overrides the expiry windows.
func (b *SessionBuilder) WithWindows(w domainauth.Windows) *SessionBuilder {
	b.params.Windows = w
	return b
}

// Build creates the session.
func (b *SessionBuilder) Build() domainauth.Session {
	return domainauth.NewSession(b.params)
}

// Convenience functions for common session shapes.

// AdminSession returns a fresh ADMIN session.
func AdminSession() domainauth.Session {
	return NewSession().WithUsername("admin1").WithRole(domainauth.RoleAdmin).Build()
}

// ViewerSession returns a fresh VIEWER session.
func ViewerSession() domainauth.Session {
	return NewSession().WithUsername("viewer1").WithRole(domainauth.RoleViewer).Build()
}
