package rbac

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	domainauth "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/domain/auth"
)

// policyFile is the on-disk shape of a permission table.
//
//	roles:
//	  VIEWER: [STATEMENTS:READ, CLIENTS:READ]
type policyFile struct {
	Roles map[string][]string `yaml:"roles"`
}

// ParsePolicy parses a YAML permission table and validates it.
func ParsePolicy(data []byte) (*Policy, error) {
	var f policyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse permission yaml: %w", err)
	}
	if len(f.Roles) == 0 {
		return nil, fmt.Errorf("permission yaml defines no roles")
	}
	t := make(Table, len(f.Roles))
	for role, actions := range f.Roles {
		r := domainauth.Role(role)
		for _, a := range actions {
			t[r] = append(t[r], Action(a))
		}
		if _, ok := t[r]; !ok {
			t[r] = []Action{}
		}
	}
	return NewPolicy(t)
}

// LoadPolicyFile reads and validates a YAML permission table from path.
func LoadPolicyFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read permission file: %w", err)
	}
	return ParsePolicy(data)
}
