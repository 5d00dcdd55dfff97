// Package audit defines the access-audit record written for authentication and authorization outcomes.
package audit

import "time"

// Kind classifies an audit event.
type Kind string

const (
	KindLoginSucceeded Kind = "login_succeeded"
	KindLoginFailed    Kind = "login_failed"
	KindLogout         Kind = "logout"
	KindAccessDenied   Kind = "access_denied"
	KindUnauthorized   Kind = "unauthorized"
)

// Event is one audit record: who did what, where, and how it was traced.
type Event struct {
	ID            string
	Time          time.Time
	Kind          Kind
	Actor         string
	Role          string
	Action        string
	Route         string
	CorrelationID string
	Detail        string
}
