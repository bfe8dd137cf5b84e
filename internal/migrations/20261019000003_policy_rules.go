package migrations

import (
	"context"
	"fmt"

	"github.com/terraconstructs/pluggableauth/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20261019000003, down_20261019000003)
}

// up_20261019000003 creates the authorization rule table
func up_20261019000003(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating policy_rules table...")

	_, err := db.NewCreateTable().
		Model((*models.PolicyRule)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create policy_rules table: %w", err)
	}

	if err := createIndex(ctx, db, (*models.PolicyRule)(nil), "idx_policy_rules_subject", false, "v0"); err != nil {
		return err
	}
	fmt.Println(" OK")

	return nil
}

// down_20261019000003 drops the authorization rule table
func down_20261019000003(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping policy_rules table...")

	_, err := db.NewDropTable().
		Model((*models.PolicyRule)(nil)).
		IfExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to drop policy_rules table: %w", err)
	}
	fmt.Println(" OK")

	return nil
}
