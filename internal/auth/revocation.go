package auth

import (
	"context"
	"sync"
	"time"
)

// RevocationRegistry records invalidated token ids. Revoke must be durable
// before it returns; IsRevoked is an indexed point lookup. Purging stale
// entries is housekeeping only: a stale entry can only ever produce a correct
// "revoked" answer, never a false negative.
type RevocationRegistry interface {
	Revoke(ctx context.Context, jti, userID string) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewInMemoryRevocationRegistry returns a registry backed by an in-memory map.
func NewInMemoryRevocationRegistry() *InMemoryRevocationRegistry {
	return &InMemoryRevocationRegistry{entries: make(map[string]revocation)}
}

type revocation struct {
	userID    string
	revokedAt time.Time
}

// InMemoryRevocationRegistry implements RevocationRegistry for tests and
// local development.
type InMemoryRevocationRegistry struct {
	mu      sync.RWMutex
	entries map[string]revocation
}

// Revoke records the token id. Revoking an already-revoked id is a no-op.
func (r *InMemoryRevocationRegistry) Revoke(_ context.Context, jti, userID string) error {
	r.mu.Lock()
	if _, ok := r.entries[jti]; !ok {
		r.entries[jti] = revocation{userID: userID, revokedAt: time.Now().UTC()}
	}
	r.mu.Unlock()
	return nil
}

// IsRevoked reports whether the token id has been revoked.
func (r *InMemoryRevocationRegistry) IsRevoked(_ context.Context, jti string) (bool, error) {
	r.mu.RLock()
	_, ok := r.entries[jti]
	r.mu.RUnlock()
	return ok, nil
}

// PurgeExpired removes entries revoked before the cutoff.
func (r *InMemoryRevocationRegistry) PurgeExpired(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for jti, entry := range r.entries {
		if entry.revokedAt.Before(cutoff) {
			delete(r.entries, jti)
			removed++
		}
	}
	return removed, nil
}
