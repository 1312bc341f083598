// Package migrations holds the versioned schema for the trust core. Each
// migration file registers itself with the shared Migrations collection in
// its init function.
package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the collection the db commands run against.
var Migrations = migrate.NewMigrations()
