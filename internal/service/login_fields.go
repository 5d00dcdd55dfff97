package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
)

// LoginFields holds the JMESPath expressions that locate login result fields in the
// backend's auth.login data. Token and Role are required; the rest may be empty.
type LoginFields struct {
	Token       string
	Username    string
	Role        string
	DisplayName string
	Email       string
}

// DefaultLoginFields matches the backend's {token, user:{...}} login data.
func DefaultLoginFields() LoginFields {
	return LoginFields{
		Token:       "token",
		Username:    "user.username",
		Role:        "user.role",
		DisplayName: "user.displayName",
		Email:       "user.email",
	}
}

type searchFunc func(data any) (any, error)

// loginExtractor evaluates compiled LoginFields against login data.
type loginExtractor struct {
	token       searchFunc
	username    searchFunc
	role        searchFunc
	displayName searchFunc
	email       searchFunc
}

// compile validates every expression. Empty optional expressions are skipped at extraction time.
func (f LoginFields) compile() (*loginExtractor, error) {
	if strings.TrimSpace(f.Token) == "" {
		return nil, errors.New("login token expression is required")
	}
	if strings.TrimSpace(f.Role) == "" {
		return nil, errors.New("login role expression is required")
	}

	var x loginExtractor
	fields := []struct {
		name string
		expr string
		dst  *searchFunc
	}{
		{"token", f.Token, &x.token},
		{"username", f.Username, &x.username},
		{"role", f.Role, &x.role},
		{"displayName", f.DisplayName, &x.displayName},
		{"email", f.Email, &x.email},
	}
	for _, fd := range fields {
		expr := strings.TrimSpace(fd.expr)
		if expr == "" {
			continue
		}
		q, err := jmespath.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compile login %s expression %q: %w", fd.name, expr, err)
		}
		*fd.dst = q.Search
	}
	return &x, nil
}

// Validate reports whether the expressions compile.
func (f LoginFields) Validate() error {
	_, err := f.compile()
	return err
}

// loginData is the extracted login result.
type loginData struct {
	Token       string
	Username    string
	Role        string
	DisplayName string
	Email       string
}

func (x *loginExtractor) extract(raw json.RawMessage) (loginData, error) {
	var doc any
	if len(raw) == 0 {
		return loginData{}, errors.New("login response has no data")
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return loginData{}, fmt.Errorf("decode login data: %w", err)
	}

	var out loginData
	var err error
	if out.Token, err = searchString(x.token, doc); err != nil {
		return loginData{}, fmt.Errorf("token: %w", err)
	}
	if out.Role, err = searchString(x.role, doc); err != nil {
		return loginData{}, fmt.Errorf("role: %w", err)
	}
	if out.Token == "" || out.Role == "" {
		return loginData{}, errors.New("login response is missing token or role")
	}
	// Optional fields fall back to empty values on a type mismatch.
	out.Username, _ = searchString(x.username, doc)
	out.DisplayName, _ = searchString(x.displayName, doc)
	out.Email, _ = searchString(x.email, doc)
	return out, nil
}

func searchString(fn searchFunc, doc any) (string, error) {
	if fn == nil {
		return "", nil
	}
	v, err := fn(doc)
	if err != nil {
		return "", err
	}
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(t), nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}
