package catalog

import (
	"context"
	"fmt"
)

var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS packages (
		id INTEGER PRIMARY KEY,
		path TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		scanned_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS entries (
		id INTEGER PRIMARY KEY,
		package_id INTEGER NOT NULL REFERENCES packages(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		size INTEGER NOT NULL,
		kind TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		UNIQUE (package_id, name)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_kind ON entries (kind)`,
}

// CreateSchema creates the inventory tables if they do not exist yet
func (c *Catalog) CreateSchema(ctx context.Context) error {
	for _, ddl := range schemaDDL {
		if _, err := c.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}
