package audit

import (
	"context"
	"log/slog"

	domainaudit "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/domain/audit"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/ports"
)

// Sink is a destination for audit events.
type Sink interface {
	Write(ctx context.Context, ev domainaudit.Event) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, ev domainaudit.Event) error

// Write implements the Sink interface.
func (f SinkFunc) Write(ctx context.Context, ev domainaudit.Event) error {
	if f == nil {
		return nil
	}
	return f(ctx, ev)
}

// LogSink writes audit events as structured log lines.
type LogSink struct {
	Logger *slog.Logger
}

// Write implements the Sink interface.
func (s LogSink) Write(ctx context.Context, ev domainaudit.Event) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "audit",
		"audit_id", ev.ID,
		"kind", string(ev.Kind),
		"actor", ev.Actor,
		"role", ev.Role,
		"action", ev.Action,
		"route", ev.Route,
		"correlation_id", ev.CorrelationID,
		"detail", ev.Detail,
		"at", ev.Time,
	)
	return nil
}

// BackendAction is the backend action audit events are forwarded under.
const BackendAction = "audit.record"

// BackendSink forwards audit events to the backend as signed calls.
type BackendSink struct {
	Client ports.BackendClient
}

type backendAuditPayload struct {
	ID            string `json:"id"`
	Time          int64  `json:"time"`
	Kind          string `json:"kind"`
	Actor         string `json:"actor,omitempty"`
	Role          string `json:"role,omitempty"`
	Action        string `json:"action,omitempty"`
	Route         string `json:"route,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	Detail        string `json:"detail,omitempty"`
}

// Write implements the Sink interface.
func (s BackendSink) Write(ctx context.Context, ev domainaudit.Event) error {
	if s.Client == nil {
		return nil
	}
	_, err := s.Client.Call(ctx, ports.BackendCall{
		Action: BackendAction,
		Payload: backendAuditPayload{
			ID:            ev.ID,
			Time:          ev.Time.UnixMilli(),
			Kind:          string(ev.Kind),
			Actor:         ev.Actor,
			Role:          ev.Role,
			Action:        ev.Action,
			Route:         ev.Route,
			CorrelationID: ev.CorrelationID,
			Detail:        ev.Detail,
		},
	})
	return err
}
