package config

import (
	"sort"
	"strings"
)

// ConfigError lists configuration variables by name. It never carries values.
type ConfigError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid: "+strings.Join(e.Invalid, ", "))
	}
	if len(parts) == 0 {
		return "configuration incomplete"
	}
	return "configuration incomplete (" + strings.Join(parts, "; ") + ")"
}

// validator collects variable names; duplicates are dropped.
type validator struct {
	missing map[string]struct{}
	invalid map[string]struct{}
}

func (v *validator) missingVar(name string) {
	if v.missing == nil {
		v.missing = make(map[string]struct{})
	}
	v.missing[name] = struct{}{}
}

func (v *validator) invalidVar(name string) {
	if v.invalid == nil {
		v.invalid = make(map[string]struct{})
	}
	v.invalid[name] = struct{}{}
}

func (v *validator) result() *ConfigError {
	if len(v.missing) == 0 && len(v.invalid) == 0 {
		return nil
	}
	return &ConfigError{Missing: sortedKeys(v.missing), Invalid: sortedKeys(v.invalid)}
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
