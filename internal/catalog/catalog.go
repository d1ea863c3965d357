// Package catalog keeps an SQLite inventory of scanned containers and the
// entries found in them.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Catalog represents a connection to the asset inventory database
type Catalog struct {
	db        *sql.DB
	path      string
	batchSize int
}

// Options configures catalog creation and connection behavior
type Options struct {
	// Path to the SQLite database file
	Path string

	// WALMode enables Write-Ahead Logging mode
	WALMode bool

	// BusyTimeout sets the timeout for locked database operations
	BusyTimeout time.Duration

	// BatchSize determines how many entries are inserted per transaction
	BatchSize int
}

// DefaultOptions returns the options used by the command line tool
func DefaultOptions(path string) *Options {
	return &Options{
		Path:        path,
		WALMode:     true,
		BusyTimeout: 30 * time.Second,
		BatchSize:   500,
	}
}

// NewCatalog opens the database at options.Path, creating it if needed
func NewCatalog(options *Options) (*Catalog, error) {
	if options == nil {
		return nil, fmt.Errorf("catalog options cannot be nil")
	}

	if options.Path == "" {
		return nil, fmt.Errorf("catalog path cannot be empty")
	}

	if err := ensureDirectory(options.Path); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite3", buildConnectionString(options))
	if err != nil {
		return nil, fmt.Errorf("opening catalog %s: %w", options.Path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("testing catalog connection: %w", err)
	}

	batchSize := options.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	return &Catalog{db: db, path: options.Path, batchSize: batchSize}, nil
}

// Path returns the database file path
func (c *Catalog) Path() string {
	return c.path
}

// Close closes the database connection
func (c *Catalog) Close() error {
	if c.db == nil {
		return nil
	}

	err := c.db.Close()
	c.db = nil

	if err != nil {
		return fmt.Errorf("closing catalog connection: %w", err)
	}

	return nil
}

func (c *Catalog) conn() (*sql.DB, error) {
	if c.db == nil {
		return nil, fmt.Errorf("catalog connection is closed")
	}
	return c.db, nil
}

// Exec executes a SQL statement that doesn't return rows
func (c *Catalog) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	db, err := c.conn()
	if err != nil {
		return nil, err
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}

	return result, nil
}

// Query executes a SQL query that returns rows
func (c *Catalog) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	db, err := c.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}

	return rows, nil
}

// buildConnectionString constructs the SQLite connection string with pragmas
func buildConnectionString(options *Options) string {
	pragmas := []string{"_foreign_keys=on"}

	if options.WALMode {
		pragmas = append(pragmas, "_journal_mode=WAL")
	}

	if options.BusyTimeout > 0 {
		pragmas = append(pragmas, fmt.Sprintf("_busy_timeout=%d", int(options.BusyTimeout.Milliseconds())))
	}

	pragmas = append(pragmas, "_synchronous=NORMAL")

	return "file:" + options.Path + "?" + strings.Join(pragmas, "&")
}

// ensureDirectory creates the directory for the database file if it doesn't exist
func ensureDirectory(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}

	return os.MkdirAll(dir, 0755)
}
