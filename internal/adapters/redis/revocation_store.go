package redis

// Package redis provides Redis-based adapters for the portal BFF.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/clock"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/ports"
)

const defaultRevocationPrefix = "portal:revoked-session:"

var _ ports.RevocationStore = (*RevocationStore)(nil)

// RevocationStoreOptions groups dependencies for RevocationStore.
type RevocationStoreOptions struct {
	Client redis.UniversalClient
	Prefix string
	Clock  clock.Clock
}

// RevocationStore is a Redis-backed deny-list of session ids.
// Entries expire on their own once the session could no longer be valid anyway.
type RevocationStore struct {
	client redis.UniversalClient
	prefix string
	clock  clock.Clock
}

// NewRevocationStore creates a new Redis-based revocation store.
func NewRevocationStore(opts RevocationStoreOptions) *RevocationStore {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultRevocationPrefix
	}
	return &RevocationStore{
		client: opts.Client,
		prefix: prefix,
		clock:  clock.OrReal(opts.Clock),
	}
}

// Revoke denies sessionID until the given instant.
func (s *RevocationStore) Revoke(ctx context.Context, sessionID string, until time.Time) error {
	if sessionID == "" {
		return errors.New("session ID cannot be empty")
	}

	ttl := until.Sub(s.clock.Now())
	if ttl <= 0 {
		// Session is already past its ceiling; nothing to deny.
		return nil
	}
	if ttl < time.Second {
		ttl = time.Second
	}

	if err := s.client.Set(ctx, s.prefix+sessionID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// IsRevoked reports whether sessionID is on the deny-list.
func (s *RevocationStore) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	n, err := s.client.Exists(ctx, s.prefix+sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}
