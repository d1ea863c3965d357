package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Entry is one inventoried container entry
type Entry struct {
	Package string `yaml:"package"`
	Name    string `yaml:"name"`
	Size    int64  `yaml:"size"`
	Kind    string `yaml:"kind"`
	Error   string `yaml:"error,omitempty"`
}

// Filter narrows the result of Entries. Zero fields match everything.
type Filter struct {
	Package    string
	Kind       string
	NameLike   string
	ErrorsOnly bool
	Limit      int
}

// KindCount is a row of Summary
type KindCount struct {
	Kind  string
	Count int
}

// RecordPackage registers a scanned container and returns its id. Entries
// recorded by an earlier scan of the same path are dropped.
func (c *Catalog) RecordPackage(ctx context.Context, path, kind string) (int64, error) {
	db, err := c.conn()
	if err != nil {
		return 0, err
	}

	var id int64
	row := db.QueryRowContext(ctx, `INSERT INTO packages (path, kind, scanned_at) VALUES (?, ?, ?)
		ON CONFLICT (path) DO UPDATE SET kind = excluded.kind, scanned_at = excluded.scanned_at
		RETURNING id`, path, kind, time.Now().UTC().Format(time.RFC3339))
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("recording package %s: %w", path, err)
	}

	if _, err := c.Exec(ctx, `DELETE FROM entries WHERE package_id = ?`, id); err != nil {
		return 0, fmt.Errorf("clearing entries of %s: %w", path, err)
	}

	return id, nil
}

// RecordEntry stores a single entry of the package pkgID
func (c *Catalog) RecordEntry(ctx context.Context, pkgID int64, e Entry) error {
	return c.RecordEntries(ctx, pkgID, []Entry{e})
}

// RecordEntries stores entries of the package pkgID in batched transactions
func (c *Catalog) RecordEntries(ctx context.Context, pkgID int64, entries []Entry) error {
	for i := 0; i < len(entries); i += c.batchSize {
		end := min(i+c.batchSize, len(entries))
		if err := c.insertBatch(ctx, pkgID, entries[i:end]); err != nil {
			return fmt.Errorf("inserting entries %d-%d: %w", i, end-1, err)
		}
	}
	return nil
}

// insertBatch inserts a single batch of entries within a transaction
func (c *Catalog) insertBatch(ctx context.Context, pkgID int64, batch []Entry) error {
	db, err := c.conn()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO entries (package_id, name, size, kind, error) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (package_id, name) DO UPDATE SET size = excluded.size, kind = excluded.kind, error = excluded.error`)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range batch {
		if _, err := stmt.ExecContext(ctx, pkgID, e.Name, e.Size, e.Kind, e.Error); err != nil {
			return fmt.Errorf("inserting entry %s: %w", e.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// Entries returns the recorded entries matching filter, ordered by
// package path and entry name
func (c *Catalog) Entries(ctx context.Context, filter Filter) ([]Entry, error) {
	var where []string
	var args []any

	if filter.Package != "" {
		where = append(where, "p.path = ?")
		args = append(args, filter.Package)
	}
	if filter.Kind != "" {
		where = append(where, "e.kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.NameLike != "" {
		where = append(where, "e.name LIKE ?")
		args = append(args, filter.NameLike)
	}
	if filter.ErrorsOnly {
		where = append(where, "e.error <> ''")
	}

	query := `SELECT p.path, e.name, e.size, e.kind, e.error FROM entries e JOIN packages p ON p.id = e.package_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.path, e.name"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := c.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Package, &e.Name, &e.Size, &e.Kind, &e.Error); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}

	return out, nil
}

// Summary counts the recorded entries per kind
func (c *Catalog) Summary(ctx context.Context) ([]KindCount, error) {
	rows, err := c.Query(ctx, `SELECT kind, COUNT(*) FROM entries GROUP BY kind ORDER BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KindCount
	for rows.Next() {
		var kc KindCount
		if err := rows.Scan(&kc.Kind, &kc.Count); err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}
		out = append(out, kc)
	}
	return out, rows.Err()
}
