package migrations

import (
	"context"
	"fmt"

	"github.com/terraconstructs/pluggableauth/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20261019000001, down_20261019000001)
}

// up_20261019000001 creates the group and principal folder tables
func up_20261019000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating groups table...")
	_, err := db.NewCreateTable().
		Model((*models.Group)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create groups table: %w", err)
	}
	fmt.Println(" OK")

	fmt.Print(" [up] creating group_members table...")
	_, err = db.NewCreateTable().
		Model((*models.GroupMember)(nil)).
		IfNotExists().
		ForeignKey(`("group_id") REFERENCES "groups" ("id") ON DELETE CASCADE`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create group_members table: %w", err)
	}

	// Reverse lookups: which groups is a principal a member of
	if err := createIndex(ctx, db, (*models.GroupMember)(nil), "idx_group_members_principal", false, "principal_id"); err != nil {
		return err
	}
	fmt.Println(" OK")

	fmt.Print(" [up] creating principals table...")
	_, err = db.NewCreateTable().
		Model((*models.Principal)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create principals table: %w", err)
	}

	if err := createIndex(ctx, db, (*models.Principal)(nil), "idx_principals_folder_login", true, "folder", "login"); err != nil {
		return err
	}
	fmt.Println(" OK")

	return nil
}

// down_20261019000001 drops the folder tables
func down_20261019000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping folder tables...")
	for _, model := range []any{
		(*models.GroupMember)(nil),
		(*models.Group)(nil),
		(*models.Principal)(nil),
	} {
		if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}
	fmt.Println(" OK")

	return nil
}
