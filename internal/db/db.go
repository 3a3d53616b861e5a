// Package db opens the sqlite databases backing client-side state. The
// only consumer today is the sync journal: a single small file owned by
// one process, so the options surface is deliberately narrow.
package db

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/markpress/markpress/internal/utils"
)

// defaultPragma tunes sqlite for a small single-writer state file.
const defaultPragma = `
PRAGMA journal_mode=WAL;
PRAGMA busy_timeout=5000;
PRAGMA foreign_keys=ON;
PRAGMA temp_store=MEMORY;
`

type config struct {
	path         string
	pragmas      string
	maxOpenConns int
}

// SqliteOption configures NewSqliteDb.
type SqliteOption func(*config)

// WithPath sets the database file. ":memory:" opens an in-memory db.
func WithPath(path string) SqliteOption {
	return func(c *config) {
		c.path = path
	}
}

// WithPragmas replaces the default connection pragmas.
func WithPragmas(pragmas string) SqliteOption {
	return func(c *config) {
		c.pragmas = pragmas
	}
}

// WithMaxOpenConns caps the connection pool. The journal uses 1 so every
// statement serializes through a single writer connection.
func WithMaxOpenConns(n int) SqliteOption {
	return func(c *config) {
		c.maxOpenConns = n
	}
}

// NewSqliteDb opens (creating if needed) a sqlite database and applies
// the connection pragmas. Parent directories are created for file-backed
// databases.
func NewSqliteDb(opts ...SqliteOption) (*sqlx.DB, error) {
	cfg := &config{
		path:    ":memory:",
		pragmas: defaultPragma,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	dsn := cfg.path
	if cfg.path != ":memory:" {
		if err := utils.EnsureParent(cfg.path); err != nil {
			return nil, fmt.Errorf("ensure parent directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_txlock=immediate&mode=rwc", cfg.path)
	}

	slog.Debug("open sqlite", "driver", driverName, "path", cfg.path)
	database, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.maxOpenConns > 0 {
		database.SetMaxOpenConns(cfg.maxOpenConns)
	}

	if _, err := database.Exec(cfg.pragmas); err != nil {
		database.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	return database, nil
}
