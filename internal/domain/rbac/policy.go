// Package rbac is the deny-by-default permission engine.
// Permissions are a finite table of (role, action) pairs; anything not listed is denied.
package rbac

import (
	"fmt"
	"sort"
	"strings"

	domainauth "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/domain/auth"
)

// Action names a guarded operation.
type Action string

const (
	ActionStatementsRead  Action = "STATEMENTS:READ"
	ActionStatementsWrite Action = "STATEMENTS:WRITE"
	ActionClientsRead     Action = "CLIENTS:READ"
	ActionMailSend        Action = "MAIL:SEND"
	ActionMailQueueRead   Action = "MAIL:QUEUE_READ"
	ActionExportCreate    Action = "EXPORT:CREATE"
	ActionAuditRead       Action = "AUDIT:READ"
	ActionUsersManage     Action = "USERS:MANAGE"
	ActionConfigRead      Action = "CONFIG:READ"
)

// AllActions is the complete enumerated action list. Tables are validated against it.
func AllActions() []Action {
	return []Action{
		ActionStatementsRead,
		ActionStatementsWrite,
		ActionClientsRead,
		ActionMailSend,
		ActionMailQueueRead,
		ActionExportCreate,
		ActionAuditRead,
		ActionUsersManage,
		ActionConfigRead,
	}
}

// Table maps each role to the actions it is granted.
type Table map[domainauth.Role][]Action

// DefaultTable is the built-in grant table. ADMIN is enumerated action by action;
// there is no implicit superuser.
func DefaultTable() Table {
	return Table{
		domainauth.RoleAdmin: {
			ActionStatementsRead,
			ActionStatementsWrite,
			ActionClientsRead,
			ActionMailSend,
			ActionMailQueueRead,
			ActionExportCreate,
			ActionAuditRead,
			ActionUsersManage,
			ActionConfigRead,
		},
		domainauth.RoleSupervisor: {
			ActionStatementsRead,
			ActionStatementsWrite,
			ActionClientsRead,
			ActionMailSend,
			ActionMailQueueRead,
			ActionExportCreate,
			ActionAuditRead,
		},
		domainauth.RoleAnalyst: {
			ActionStatementsRead,
			ActionStatementsWrite,
			ActionClientsRead,
			ActionMailQueueRead,
			ActionExportCreate,
		},
		domainauth.RoleViewer: {
			ActionStatementsRead,
			ActionClientsRead,
		},
	}
}

type grant struct {
	role   domainauth.Role
	action Action
}

// Policy is an immutable, validated permission table.
type Policy struct {
	grants map[grant]struct{}
	roles  map[domainauth.Role][]Action
}

// NewPolicy validates t and builds a Policy.
// Unknown roles or actions are rejected so a typo never silently changes access.
func NewPolicy(t Table) (*Policy, error) {
	knownActions := make(map[Action]struct{}, len(AllActions()))
	for _, a := range AllActions() {
		knownActions[a] = struct{}{}
	}

	p := &Policy{
		grants: make(map[grant]struct{}),
		roles:  make(map[domainauth.Role][]Action, len(t)),
	}
	var problems []string
	for role, actions := range t {
		if _, ok := domainauth.ParseRole(string(role)); !ok || strings.ToUpper(string(role)) != string(role) {
			problems = append(problems, fmt.Sprintf("unknown role %q", role))
			continue
		}
		seen := make(map[Action]struct{}, len(actions))
		for _, a := range actions {
			if _, ok := knownActions[a]; !ok {
				problems = append(problems, fmt.Sprintf("role %s: unknown action %q", role, a))
				continue
			}
			if _, dup := seen[a]; dup {
				continue
			}
			seen[a] = struct{}{}
			p.grants[grant{role: role, action: a}] = struct{}{}
			p.roles[role] = append(p.roles[role], a)
		}
		sort.Slice(p.roles[role], func(i, j int) bool { return p.roles[role][i] < p.roles[role][j] })
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, fmt.Errorf("invalid permission table: %s", strings.Join(problems, "; "))
	}
	return p, nil
}

// MustDefaultPolicy returns the policy built from DefaultTable.
func MustDefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultTable())
	if err != nil {
		panic(err)
	}
	return p
}

// Allows reports whether role is granted action.
func (p *Policy) Allows(role domainauth.Role, action Action) bool {
	if p == nil {
		return false
	}
	_, ok := p.grants[grant{role: role, action: action}]
	return ok
}

// HasPermission reports whether the session may perform action. A nil session is denied.
func (p *Policy) HasPermission(sess *domainauth.Session, action Action) bool {
	if sess == nil {
		return false
	}
	return p.Allows(sess.User.Role, action)
}

// Permissions returns the sorted actions granted to role.
func (p *Policy) Permissions(role domainauth.Role) []Action {
	if p == nil {
		return nil
	}
	out := make([]Action, len(p.roles[role]))
	copy(out, p.roles[role])
	return out
}

// Roles returns the roles present in the policy, sorted.
func (p *Policy) Roles() []domainauth.Role {
	if p == nil {
		return nil
	}
	out := make([]domainauth.Role, 0, len(p.roles))
	for r := range p.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
