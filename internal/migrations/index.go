package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// createIndex creates a secondary index on model's table. bun renders the
// statement for the connected dialect.
func createIndex(ctx context.Context, db *bun.DB, model any, name string, unique bool, columns ...string) error {
	q := db.NewCreateIndex().
		Model(model).
		Index(name).
		Column(columns...).
		IfNotExists()
	if unique {
		q = q.Unique()
	}
	if _, err := q.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create index %s: %w", name, err)
	}
	return nil
}
