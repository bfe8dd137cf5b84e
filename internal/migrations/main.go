// Package migrations holds the schema migrations applied by "pauthd db migrate".
package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the registry every migration file adds itself to.
var Migrations = migrate.NewMigrations()
