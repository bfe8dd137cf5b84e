package migrations

import (
	"context"
	"fmt"

	"github.com/terraconstructs/pluggableauth/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20261019000002, down_20261019000002)
}

// up_20261019000002 creates the bearer token denylist
func up_20261019000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating revoked_tokens table...")

	_, err := db.NewCreateTable().
		Model((*models.RevokedToken)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create revoked_tokens table: %w", err)
	}

	// Cleanup scans by expiry
	if err := createIndex(ctx, db, (*models.RevokedToken)(nil), "idx_revoked_tokens_expires_at", false, "expires_at"); err != nil {
		return err
	}
	fmt.Println(" OK")

	return nil
}

// down_20261019000002 drops the denylist
func down_20261019000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping revoked_tokens table...")

	_, err := db.NewDropTable().
		Model((*models.RevokedToken)(nil)).
		IfExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to drop revoked_tokens table: %w", err)
	}
	fmt.Println(" OK")

	return nil
}
