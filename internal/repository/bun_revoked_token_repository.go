package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/terraconstructs/pluggableauth/internal/db/models"
	"github.com/uptrace/bun"
)

// BunRevokedTokenRepository implements RevokedTokenRepository using Bun ORM
type BunRevokedTokenRepository struct {
	db bun.IDB
}

// NewBunRevokedTokenRepository creates a new Bun-based token denylist
func NewBunRevokedTokenRepository(db bun.IDB) *BunRevokedTokenRepository {
	return &BunRevokedTokenRepository{db: db}
}

// Revoke adds a token id to the denylist. Revoking twice is not an error.
func (r *BunRevokedTokenRepository) Revoke(ctx context.Context, jti, subject string, expiresAt time.Time) error {
	_, err := r.db.NewInsert().
		Model(&models.RevokedToken{JTI: jti, Subject: subject, ExpiresAt: expiresAt, RevokedAt: time.Now()}).
		On("CONFLICT (jti) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked checks if a token id is on the denylist
func (r *BunRevokedTokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*models.RevokedToken)(nil)).
		Where("jti = ?", jti).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return exists, nil
}

// DeleteExpired removes entries whose token expired more than gracePeriod ago
func (r *BunRevokedTokenRepository) DeleteExpired(ctx context.Context, gracePeriod time.Duration) (int64, error) {
	cutoff := time.Now().Add(-gracePeriod)

	result, err := r.db.NewDelete().
		Model((*models.RevokedToken)(nil)).
		Where("expires_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete expired revoked tokens: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
