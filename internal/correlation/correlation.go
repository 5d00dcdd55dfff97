// Package correlation carries the per-request correlation id through contexts.
package correlation

import (
	"context"

	"github.com/google/uuid"
)

// Header is the HTTP header carrying the correlation id in both directions.
const Header = "X-Correlation-Id"

const maxLen = 128

type ctxKey struct{}

// WithID returns a child context carrying id.
func WithID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the correlation id in ctx, or "".
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Ensure returns ctx's correlation id, generating and attaching one if missing.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := FromContext(ctx); id != "" {
		return ctx, id
	}
	id := NewID()
	return WithID(ctx, id), id
}

// NewID generates a fresh correlation id.
func NewID() string {
	return uuid.NewString()
}

// Sanitize returns an inbound id if it is safe to reuse in logs and headers, else "".
func Sanitize(id string) string {
	if id == "" || len(id) > maxLen {
		return ""
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return ""
		}
	}
	return id
}
