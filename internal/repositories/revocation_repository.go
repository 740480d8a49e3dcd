package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/vidvault/backend/internal/auth"
	"github.com/vidvault/backend/internal/db"
)

// PostgresRevocationRegistry persists revoked token ids to PostgreSQL.
type PostgresRevocationRegistry struct {
	pool db.Pool
}

// NewPostgresRevocationRegistry constructs a registry backed by PostgreSQL.
func NewPostgresRevocationRegistry(pool db.Pool) *PostgresRevocationRegistry {
	return &PostgresRevocationRegistry{pool: pool}
}

// Revoke durably records the token id. Re-revoking an id is a no-op success;
// the unique index on jti absorbs the conflict.
func (r *PostgresRevocationRegistry) Revoke(ctx context.Context, jti, userID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO revoked_tokens (jti, user_id, revoked_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (jti) DO NOTHING
    `, jti, userID)
	if err != nil {
		return fmt.Errorf("insert revocation: %w", err)
	}

	return nil
}

// IsRevoked reports whether the token id appears in the registry.
func (r *PostgresRevocationRegistry) IsRevoked(ctx context.Context, jti string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var revoked bool
	if err := conn.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1)
    `, jti).Scan(&revoked); err != nil {
		return false, fmt.Errorf("select revocation: %w", err)
	}

	return revoked, nil
}

// PurgeExpired removes entries revoked before the cutoff and reports how many
// were deleted. Entries only become eligible once no token carrying their jti
// could still be unexpired, so timing is not correctness-critical.
func (r *PostgresRevocationRegistry) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM revoked_tokens
        WHERE revoked_at < $1
    `, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge revocations: %w", err)
	}

	return tag.RowsAffected(), nil
}

var _ auth.RevocationRegistry = (*PostgresRevocationRegistry)(nil)
