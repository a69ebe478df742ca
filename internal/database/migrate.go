package database

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
)

//go:embed migrations/001_client_storage.up.sql
var clientStorageSQL string

//go:embed migrations/002_audit_entries.up.sql
var auditEntriesSQL string

type migration struct {
	name  string
	table string
	sql   string
}

var migrations = []migration{
	{name: "001", table: "client_storage", sql: clientStorageSQL},
	{name: "002", table: "audit_entries", sql: auditEntriesSQL},
}

// EnsureSchema applies each migration whose table is missing. The
// migrations use IF NOT EXISTS and are safe to re-run.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if db == nil || db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	for _, m := range migrations {
		exists, err := db.hasTable(ctx, m.table)
		if err != nil {
			return fmt.Errorf("check %s table: %w", m.table, err)
		}
		if exists {
			continue
		}

		slog.Info("table missing; applying migration", "table", m.table, "migration", m.name)
		if _, err := db.Pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
	}

	slog.Info("database schema ensured")
	return nil
}

func (db *DB) hasTable(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)
	`, name).Scan(&exists)
	return exists, err
}
