package bunx

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	_ "modernc.org/sqlite" // SQLite driver
)

// DatabaseType represents the type of database
type DatabaseType string

const (
	DatabaseTypePostgreSQL DatabaseType = "postgres"
	DatabaseTypeSQLite     DatabaseType = "sqlite"
)

// DetectDatabaseType determines the database type from a DSN string
func DetectDatabaseType(dsn string) DatabaseType {
	// PostgreSQL DSN patterns
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DatabaseTypePostgreSQL
	}
	// SQLite patterns: file:, :memory:, or plain file path
	return DatabaseTypeSQLite
}

// NewDB creates a new Bun database instance for PostgreSQL or SQLite based
// on the DSN. maxConns bounds the PostgreSQL pool; SQLite always runs with
// a single writer connection.
func NewDB(dsn string, maxConns int) (*bun.DB, error) {
	switch DetectDatabaseType(dsn) {
	case DatabaseTypePostgreSQL:
		return newPostgreSQLDB(dsn, maxConns)
	case DatabaseTypeSQLite:
		return newSQLiteDB(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type for DSN: %s", dsn)
	}
}

func newPostgreSQLDB(dsn string, maxConns int) (*bun.DB, error) {
	if maxConns <= 0 {
		maxConns = 25
	}

	connector := pgdriver.NewConnector(pgdriver.WithDSN(dsn))
	sqldb := sql.OpenDB(connector)
	sqldb.SetMaxOpenConns(maxConns)
	sqldb.SetMaxIdleConns(maxConns)

	db := bun.NewDB(sqldb, pgdialect.New())

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func newSQLiteDB(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// SQLite best practices: single writer connection
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	// Enable foreign keys (disabled by default in SQLite)
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func Close(db *bun.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}
