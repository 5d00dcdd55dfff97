package ports

// Package ports defines interfaces (hexagonal ports) for session, backend and audit behavior.
// Implementations live in internal/adapters; orchestration in internal/service and internal/http.

import (
	"context"
	"encoding/json"
	"time"

	domainaudit "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/domain/audit"
	domainauth "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/domain/auth"
)

// SessionCodec turns a session into an opaque cookie value and back.
type SessionCodec interface {
	// Encode serializes and signs the session.
	Encode(sess domainauth.Session) (string, error)
	// Decode verifies token and returns the session, failing with an INVALID_TOKEN error
	// for malformed, tampered or expired input.
	Decode(token string) (domainauth.Session, error)
}

// RevocationStore is a deny-list of session ids revoked before their natural expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, sessionID string, until time.Time) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// RoleMapper maps backend-issued role names to portal roles.
type RoleMapper interface {
	Map(backendRole string) (domainauth.Role, bool)
}

// BackendCall is a single signed call to the backend service.
type BackendCall struct {
	Action    string
	Payload   any
	AuthToken string
}

// BackendError is the normalized error part of a backend envelope.
type BackendError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// BackendResponse is the normalized backend envelope.
type BackendResponse struct {
	OK            bool            `json:"ok"`
	Data          json.RawMessage `json:"data,omitempty"`
	Error         *BackendError   `json:"error,omitempty"`
	CorrelationID string          `json:"correlationId"`
}

// BackendClient dispatches signed calls to the backend service.
// The response is never nil. A non-nil error is an *errors.AppError whose code matches Response.Error.
type BackendClient interface {
	Call(ctx context.Context, call BackendCall) (*BackendResponse, error)
}

// AuditRecorder records audit events. Implementations must never block or fail the caller.
type AuditRecorder interface {
	Record(ctx context.Context, ev domainaudit.Event)
}
