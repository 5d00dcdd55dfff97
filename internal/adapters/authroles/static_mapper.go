package authroles

import (
	"fmt"
	"strings"

	domainauth "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/domain/auth"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/ports"
)

var _ ports.RoleMapper = StaticRoleMapper{}

// StaticRoleMapper maps backend role names to portal roles.
// Canonical role names match case-insensitively; Aliases cover backend spellings that differ
// (e.g. "GESTOR" -> SUPERVISOR). Anything else is unmapped.
type StaticRoleMapper struct {
	Aliases map[string]domainauth.Role
}

// NewStaticRoleMapper builds a mapper from alias pairs ("GESTOR" -> "SUPERVISOR").
// Alias keys are normalized; every target must be a known role.
func NewStaticRoleMapper(aliases map[string]string) (StaticRoleMapper, error) {
	m := StaticRoleMapper{Aliases: make(map[string]domainauth.Role, len(aliases))}
	for from, to := range aliases {
		role, ok := domainauth.ParseRole(to)
		if !ok {
			return StaticRoleMapper{}, fmt.Errorf("role alias %q: unknown target role %q", from, to)
		}
		key := normalize(from)
		if key == "" {
			return StaticRoleMapper{}, fmt.Errorf("role alias for %q: empty source name", to)
		}
		m.Aliases[key] = role
	}
	return m, nil
}

// Map returns the portal role for a backend role name.
func (m StaticRoleMapper) Map(backendRole string) (domainauth.Role, bool) {
	key := normalize(backendRole)
	if key == "" {
		return "", false
	}
	if role, ok := m.Aliases[key]; ok {
		return role, true
	}
	return domainauth.ParseRole(key)
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
