package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"sync"
	"time"

	domainaudit "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/domain/audit"
	domainauth "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/domain/auth"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.BackendClient   = (*ScriptedBackend)(nil)
	_ ports.RevocationStore = (*MemoryRevocationStore)(nil)
	_ ports.RoleMapper      = (*StaticRoleMapper)(nil)
	_ ports.AuditRecorder   = (*RecordingAuditor)(nil)
)

// ScriptedBackend answers backend calls from per-action handlers and records every call.
// Actions without a handler get an ok response with no data.
type ScriptedBackend struct {
	Handlers map[string]func(ctx context.Context, call ports.BackendCall) (*ports.BackendResponse, error)

	mu    sync.Mutex
	calls []ports.BackendCall
}

// NewScriptedBackend creates an empty ScriptedBackend.
func NewScriptedBackend() *ScriptedBackend {
	return &ScriptedBackend{
		Handlers: make(map[string]func(context.Context, ports.BackendCall) (*ports.BackendResponse, error)),
	}
}

// On registers a handler for action.
func (b *ScriptedBackend) On(action string, fn func(ctx context.Context, call ports.BackendCall) (*ports.BackendResponse, error)) *ScriptedBackend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Handlers[action] = fn
	return b
}

// Call implements ports.BackendClient.
func (b *ScriptedBackend) Call(ctx context.Context, call ports.BackendCall) (*ports.BackendResponse, error) {
	b.mu.Lock()
	b.calls = append(b.calls, call)
	fn := b.Handlers[call.Action]
	b.mu.Unlock()

	if fn != nil {
		return fn(ctx, call)
	}
	return &ports.BackendResponse{OK: true}, nil
}

// Calls returns a copy of every call received so far.
func (b *ScriptedBackend) Calls() []ports.BackendCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ports.BackendCall(nil), b.calls...)
}

// CallsFor returns the calls received for action.
func (b *ScriptedBackend) CallsFor(action string) []ports.BackendCall {
	var out []ports.BackendCall
	for _, c := range b.Calls() {
		if c.Action == action {
			out = append(out, c)
		}
	}
	return out
}

// MemoryRevocationStore is an in-memory deny-list for unit tests.
// Err, when set, is returned from every call to simulate an unavailable store.
type MemoryRevocationStore struct {
	Err error

	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewMemoryRevocationStore creates a new in-memory revocation store.
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{revoked: make(map[string]time.Time)}
}

func (m *MemoryRevocationStore) Revoke(_ context.Context, sessionID string, until time.Time) error {
	if m.Err != nil {
		return m.Err
	}
	if sessionID == "" {
		return errors.New("session ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[sessionID] = until
	return nil
}

func (m *MemoryRevocationStore) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[sessionID]
	return ok, nil
}

// StaticRoleMapper maps backend role names by exact lookup.
type StaticRoleMapper struct {
	Roles map[string]domainauth.Role
}

func (m StaticRoleMapper) Map(backendRole string) (domainauth.Role, bool) {
	role, ok := m.Roles[backendRole]
	return role, ok
}

// RecordingAuditor keeps audit events in memory, synchronously.
type RecordingAuditor struct {
	mu     sync.Mutex
	events []domainaudit.Event
}

func (r *RecordingAuditor) Record(_ context.Context, ev domainaudit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *RecordingAuditor) Events() []domainaudit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domainaudit.Event(nil), r.events...)
}

// ByKind returns the recorded events of kind.
func (r *RecordingAuditor) ByKind(kind domainaudit.Kind) []domainaudit.Event {
	var out []domainaudit.Event
	for _, ev := range r.Events() {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}
