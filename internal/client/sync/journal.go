package sync

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/markpress/markpress/internal/db"
	"github.com/markpress/markpress/internal/manifest"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS sync_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    base_commit TEXT NOT NULL,
    synced_at TEXT NOT NULL -- RFC3339
);

CREATE TABLE IF NOT EXISTS synced_files (
    path TEXT PRIMARY KEY,
    hash TEXT NOT NULL,
    size INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_synced_files_hash ON synced_files(hash);
`

type dbSyncedFile struct {
	Path string `db:"path"`
	Hash string `db:"hash"`
	Size int64  `db:"size"`
}

// Journal is the client's durable record of the last completed sync: the
// agreed base commit and the manifest as of that sync. It is what makes
// local deletions distinguishable from files that never existed.
type Journal struct {
	db     *sqlx.DB
	dbPath string
}

func NewJournal(dbPath string) *Journal {
	return &Journal{dbPath: dbPath}
}

func (j *Journal) Open() error {
	if j.db != nil {
		return errors.New("journal already open")
	}

	database, err := db.NewSqliteDb(db.WithPath(j.dbPath), db.WithMaxOpenConns(1))
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	if _, err := database.Exec(journalSchema); err != nil {
		database.Close()
		return fmt.Errorf("initialize journal schema: %w", err)
	}

	j.db = database
	return nil
}

func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("close journal: %w", err)
	}
	j.db = nil
	slog.Debug("journal closed")
	return nil
}

// BaseCommit returns the base commit of the last completed sync, or ""
// before the first one.
func (j *Journal) BaseCommit() (string, error) {
	var commit string
	err := j.db.Get(&commit, "SELECT base_commit FROM sync_state WHERE id = 1")
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query base commit: %w", err)
	}
	return commit, nil
}

func (j *Journal) SetBaseCommit(commit string) error {
	_, err := j.db.Exec(`
		INSERT INTO sync_state (id, base_commit, synced_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET base_commit = excluded.base_commit, synced_at = excluded.synced_at`,
		commit, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store base commit: %w", err)
	}
	return nil
}

// Files returns the manifest as of the last completed sync.
func (j *Journal) Files() ([]manifest.Entry, error) {
	var rows []dbSyncedFile
	if err := j.db.Select(&rows, "SELECT path, hash, size FROM synced_files ORDER BY path"); err != nil {
		return nil, fmt.Errorf("query synced files: %w", err)
	}

	entries := make([]manifest.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, manifest.Entry{Path: row.Path, Hash: row.Hash, Size: row.Size})
	}
	return entries, nil
}

// Has reports whether path was part of the last completed sync.
func (j *Journal) Has(path string) (bool, error) {
	var one int
	err := j.db.Get(&one, "SELECT 1 FROM synced_files WHERE path = ?", path)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query path %s: %w", path, err)
	}
	return true, nil
}

func (j *Journal) SetFile(entry manifest.Entry) error {
	_, err := j.db.Exec(`
		INSERT INTO synced_files (path, hash, size) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET hash = excluded.hash, size = excluded.size`,
		entry.Path, entry.Hash, entry.Size)
	if err != nil {
		return fmt.Errorf("store synced file %s: %w", entry.Path, err)
	}
	return nil
}

func (j *Journal) DeleteFile(path string) error {
	if _, err := j.db.Exec("DELETE FROM synced_files WHERE path = ?", path); err != nil {
		return fmt.Errorf("delete synced file %s: %w", path, err)
	}
	return nil
}
