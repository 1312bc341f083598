package migrations

import (
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// Migrations branch on the dialect where SQLite and PostgreSQL need
// different DDL.

func isSQLite(db *bun.DB) bool {
	return db.Dialect().Name() == dialect.SQLite
}

func isPostgres(db *bun.DB) bool {
	return db.Dialect().Name() == dialect.PG
}
