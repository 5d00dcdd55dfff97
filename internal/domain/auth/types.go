package auth

// Package auth contains domain-level types for portal users and their sessions.
// It is pure and free of framework/adapter concerns.

import (
	"strings"
	"time"
)

// Role represents a portal authorization role.
// Keep string form for easy persistence and cookies.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleSupervisor Role = "SUPERVISOR"
	RoleAnalyst    Role = "ANALYST"
	RoleViewer     Role = "VIEWER"
)

// AllRoles lists every role the portal knows about.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleSupervisor, RoleAnalyst, RoleViewer}
}

// ParseRole normalizes s into a known Role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllRoles() {
		if r == known {
			return r, true
		}
	}
	return "", false
}

// User is the identity carried inside a session.
type User struct {
	Username    string `json:"username"`
	Role        Role   `json:"role"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Windows bounds a session's lifetime.
// Inactivity is the sliding window; Absolute is the hard ceiling measured from creation.
type Windows struct {
	Inactivity time.Duration
	Absolute   time.Duration
}

// Session is one authenticated browser. The encoded token is the session; nothing is kept server-side.
type Session struct {
	ID           string
	User         User
	BackendToken string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// NewSessionParams groups inputs for NewSession.
type NewSessionParams struct {
	ID           string
	User         User
	BackendToken string
	Now          time.Time
	Windows      Windows
}

// NewSession creates a session anchored at p.Now.
func NewSession(p NewSessionParams) Session {
	created := TruncateMillis(p.Now)
	return Session{
		ID:           p.ID,
		User:         p.User,
		BackendToken: p.BackendToken,
		CreatedAt:    created,
		ExpiresAt:    slidingExpiry(created, created, p.Windows),
	}
}

// Valid reports whether the session is usable at now.
func (s Session) Valid(now time.Time) bool {
	return s.ExpiresAt.After(now) && s.ExpiresAt.After(s.CreatedAt)
}

// Extend returns a copy whose expiry slides forward from now, never past the absolute ceiling.
func (s Session) Extend(now time.Time, w Windows) Session {
	s.ExpiresAt = slidingExpiry(s.CreatedAt, TruncateMillis(now), w)
	return s
}

// AbsoluteDeadline is the latest instant the session can ever be valid.
func (s Session) AbsoluteDeadline(w Windows) time.Time {
	return s.CreatedAt.Add(w.Absolute)
}

func slidingExpiry(created, now time.Time, w Windows) time.Time {
	exp := now.Add(w.Inactivity)
	if ceiling := created.Add(w.Absolute); exp.After(ceiling) {
		exp = ceiling
	}
	return exp
}

// TruncateMillis drops sub-millisecond precision so times survive an epoch-ms round trip.
func TruncateMillis(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli()).UTC()
}
