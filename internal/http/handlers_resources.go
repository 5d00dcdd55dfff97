package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/domain/rbac"
	apperrors "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/errors"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/ports"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/service"
)

// Gateway is the permission-checking backend proxy the resource handlers use.
type Gateway interface {
	Authorize(ctx context.Context, in service.AuthorizeInput) error
	Forward(ctx context.Context, in service.ForwardInput) (*ports.BackendResponse, error)
	Policy() *rbac.Policy
}

// ResourceRoute maps one API route to a permission and a backend action.
type ResourceRoute struct {
	Method        string
	Path          string // net/http pattern path, e.g. /api/statements/{id}
	Action        rbac.Action
	BackendAction string
}

// Pattern is the ServeMux pattern for the route.
func (rt ResourceRoute) Pattern() string {
	return rt.Method + " " + rt.Path
}

// pathParams returns the wildcard names in the route path.
func (rt ResourceRoute) pathParams() []string {
	var names []string
	for _, seg := range strings.Split(rt.Path, "/") {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			names = append(names, strings.TrimSuffix(strings.Trim(seg, "{}"), "..."))
		}
	}
	return names
}

// DefaultResourceRoutes is the proxied API surface.
func DefaultResourceRoutes() []ResourceRoute {
	return []ResourceRoute{
		{Method: http.MethodGet, Path: "/api/statements", Action: rbac.ActionStatementsRead, BackendAction: "statements.list"},
		{Method: http.MethodGet, Path: "/api/statements/{id}", Action: rbac.ActionStatementsRead, BackendAction: "statements.get"},
		{Method: http.MethodPatch, Path: "/api/statements/{id}", Action: rbac.ActionStatementsWrite, BackendAction: "statements.update"},
		{Method: http.MethodGet, Path: "/api/clients", Action: rbac.ActionClientsRead, BackendAction: "clients.list"},
		{Method: http.MethodPost, Path: "/api/mail/send", Action: rbac.ActionMailSend, BackendAction: "mail.send"},
		{Method: http.MethodGet, Path: "/api/mail/queue", Action: rbac.ActionMailQueueRead, BackendAction: "mail.queue"},
		{Method: http.MethodPost, Path: "/api/exports", Action: rbac.ActionExportCreate, BackendAction: "export.create"},
		{Method: http.MethodGet, Path: "/api/audit", Action: rbac.ActionAuditRead, BackendAction: "audit.list"},
		{Method: http.MethodGet, Path: "/api/users", Action: rbac.ActionUsersManage, BackendAction: "users.list"},
	}
}

// ResourceHandlers proxies permission-checked calls to the backend.
type ResourceHandlers struct {
	Gateway  Gateway
	Sessions Sessions
	Dev      bool
	Logger   *slog.Logger
}

// Handle returns the handler for rt: permission check, payload assembly, session
// refresh, then the backend call with the session's backend token.
func (h *ResourceHandlers) Handle(rt ResourceRoute) http.HandlerFunc {
	params := rt.pathParams()
	return func(w http.ResponseWriter, r *http.Request) {
		sess := GetSessionFromContext(r.Context())
		authz := service.AuthorizeInput{Session: sess, Action: rt.Action, Route: r.URL.Path}
		if err := h.Gateway.Authorize(r.Context(), authz); err != nil {
			WriteAppError(w, r, ErrorParams{Err: err, Dev: h.Dev})
			return
		}

		payload, err := buildPayload(w, r, params)
		if err != nil {
			WriteAppError(w, r, ErrorParams{Err: err, Dev: h.Dev})
			return
		}

		authz.Session = h.Sessions.Refresh(w, r, sess)
		resp, err := h.Gateway.Forward(r.Context(), service.ForwardInput{
			AuthorizeInput: authz,
			BackendAction:  rt.BackendAction,
			Payload:        payload,
		})
		if err != nil {
			if apperrors.IsUnauthorized(err) {
				// The backend token is gone; the local session must go with it.
				h.Sessions.Destroy(w, r)
				if h.Logger != nil {
					h.Logger.InfoContext(r.Context(), "backend rejected session token; session cleared", "route", r.URL.Path)
				}
			}
			WriteAppError(w, r, ErrorParams{Err: err, Upstream: true, Dev: h.Dev})
			return
		}

		var data any
		if resp != nil && len(resp.Data) > 0 {
			data = resp.Data
		}
		WriteOK(w, r, data)
	}
}

// buildPayload merges query parameters, the JSON object body and path parameters,
// later sources overriding earlier ones. Single query values are strings, repeated ones arrays.
func buildPayload(w http.ResponseWriter, r *http.Request, params []string) (map[string]any, error) {
	payload := make(map[string]any)
	for key, values := range r.URL.Query() {
		if len(values) == 1 {
			payload[key] = values[0]
			continue
		}
		payload[key] = values
	}

	if hasBody(r.Method) {
		body, err := decodeObjectBody(w, r)
		if err != nil {
			return nil, err
		}
		for k, v := range body {
			payload[k] = v
		}
	}

	for _, name := range params {
		payload[name] = r.PathValue(name)
	}
	return payload, nil
}

func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}
