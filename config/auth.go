package config

import "strings"

// AuthConfig groups login-related configuration.
type AuthConfig struct {
	// RoleAliases maps backend role spellings to portal roles, e.g. "GESTOR:SUPERVISOR".
	RoleAliases map[string]string `env:"AUTH_ROLE_ALIASES" envDefault:"GESTOR:SUPERVISOR"`
}

// Sanitize trims alias keys and values and drops empty pairs.
func (c *AuthConfig) Sanitize() {
	if len(c.RoleAliases) == 0 {
		return
	}
	clean := make(map[string]string, len(c.RoleAliases))
	for from, to := range c.RoleAliases {
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if from == "" || to == "" {
			continue
		}
		clean[from] = to
	}
	c.RoleAliases = clean
}

// RBACConfig points at an optional permission table override.
type RBACConfig struct {
	// PolicyFile is a YAML permission table. Empty uses the built-in table.
	PolicyFile string `env:"RBAC_POLICY_FILE" envDefault:""`
}

// Sanitize trims the policy path.
func (c *RBACConfig) Sanitize() {
	c.PolicyFile = strings.TrimSpace(c.PolicyFile)
}
