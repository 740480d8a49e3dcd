package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vidvault/backend/internal/auth"
)

const revocationKeyPrefix = "revoked:"

// RedisRevocationRegistry keeps revoked token ids in Redis. Each entry is
// written with a TTL matching the retention window, so expiry handles purging
// without a background sweep.
type RedisRevocationRegistry struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisRevocationRegistry constructs a registry on the provided client.
func NewRedisRevocationRegistry(client *redis.Client, retention time.Duration) *RedisRevocationRegistry {
	return &RedisRevocationRegistry{client: client, retention: retention}
}

// Revoke records the token id with the retention TTL. Overwriting an existing
// entry is harmless, so no existence check is needed.
func (r *RedisRevocationRegistry) Revoke(ctx context.Context, jti, userID string) error {
	if err := r.client.Set(ctx, revocationKeyPrefix+jti, userID, r.retention).Err(); err != nil {
		return fmt.Errorf("set revocation: %w", err)
	}
	return nil
}

// IsRevoked reports whether the token id is present and unexpired.
func (r *RedisRevocationRegistry) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, revocationKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return n > 0, nil
}

// PurgeExpired is a no-op; Redis key TTLs already remove stale entries.
func (r *RedisRevocationRegistry) PurgeExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

var _ auth.RevocationRegistry = (*RedisRevocationRegistry)(nil)
