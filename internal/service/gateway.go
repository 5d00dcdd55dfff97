package service

import (
	"context"
	"log/slog"

	domainaudit "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/domain/audit"
	domainauth "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/domain/auth"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/domain/rbac"
	apperrors "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/errors"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/observability/metrics"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/ports"
)

// GatewayServiceOptions groups dependencies for GatewayService.
type GatewayServiceOptions struct {
	Backend ports.BackendClient // Required
	Policy  *rbac.Policy        // Required
	Support GatewaySupport      // Optional collaborators
}

// GatewaySupport groups optional GatewayService collaborators.
type GatewaySupport struct {
	Audit   ports.AuditRecorder
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// GatewayService checks permissions and forwards authorized calls to the backend
// with the session's backend token.
type GatewayService struct {
	backend ports.BackendClient
	policy  *rbac.Policy
	audit   ports.AuditRecorder
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewGatewayService constructs a new GatewayService.
func NewGatewayService(opts GatewayServiceOptions) *GatewayService {
	if opts.Backend == nil {
		panic("GatewayService: Backend is required")
	}
	if opts.Policy == nil {
		panic("GatewayService: Policy is required")
	}
	logger := opts.Support.Logger
	if logger == nil {
		logger = slog.Default().With("component", "gateway_service")
	}
	return &GatewayService{
		backend: opts.Backend,
		policy:  opts.Policy,
		audit:   opts.Support.Audit,
		metrics: opts.Support.Metrics,
		logger:  logger,
	}
}

// Policy returns the permission policy in use.
func (s *GatewayService) Policy() *rbac.Policy {
	return s.policy
}

// AuthorizeInput names the permission a request needs.
type AuthorizeInput struct {
	Session *domainauth.Session
	Action  rbac.Action
	Route   string
}

// Authorize returns nil when the session holds the action. A nil session is UNAUTHORIZED;
// a denial is FORBIDDEN and is audited.
func (s *GatewayService) Authorize(ctx context.Context, in AuthorizeInput) error {
	if in.Session == nil {
		s.record(ctx, domainaudit.Event{
			Kind:   domainaudit.KindUnauthorized,
			Action: string(in.Action),
			Route:  in.Route,
		})
		return apperrors.Unauthorized("Authentication required")
	}
	if s.policy.HasPermission(in.Session, in.Action) {
		return nil
	}

	s.metrics.Denied(string(in.Action))
	s.record(ctx, domainaudit.Event{
		Kind:   domainaudit.KindAccessDenied,
		Actor:  in.Session.User.Username,
		Role:   string(in.Session.User.Role),
		Action: string(in.Action),
		Route:  in.Route,
	})
	s.logger.InfoContext(ctx, "access denied",
		"username", in.Session.User.Username,
		"role", in.Session.User.Role,
		"action", in.Action,
		"route", in.Route,
	)
	return apperrors.Forbidden("You do not have permission to perform this action")
}

// ForwardInput is an authorized call to proxy.
type ForwardInput struct {
	AuthorizeInput
	BackendAction string
	Payload       any
}

// Forward authorizes the call and dispatches it to the backend.
// A backend UNAUTHORIZED (expired backend token) is audited; the caller should end the session.
func (s *GatewayService) Forward(ctx context.Context, in ForwardInput) (*ports.BackendResponse, error) {
	if err := s.Authorize(ctx, in.AuthorizeInput); err != nil {
		return nil, err
	}

	resp, err := s.backend.Call(ctx, ports.BackendCall{
		Action:    in.BackendAction,
		Payload:   in.Payload,
		AuthToken: in.Session.BackendToken,
	})
	if apperrors.IsUnauthorized(err) {
		s.record(ctx, domainaudit.Event{
			Kind:   domainaudit.KindUnauthorized,
			Actor:  in.Session.User.Username,
			Role:   string(in.Session.User.Role),
			Action: string(in.Action),
			Route:  in.Route,
			Detail: "backend token rejected",
		})
	}
	return resp, err
}

func (s *GatewayService) record(ctx context.Context, ev domainaudit.Event) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, ev)
}
