// Package workspace manages the local post directory: layout, the
// single-instance lock, ignore rules, and safe path resolution.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/markpress/markpress/internal/manifest"
	"github.com/markpress/markpress/internal/utils"
)

const (
	metadataDir = ".mpdata"
	logsDir     = "logs"
	lockFile    = "markpress.lock"
	journalFile = "journal.db"

	// IgnoreFile lists gitignore-style patterns excluded from sync.
	IgnoreFile = ".mpignore"
)

var ErrWorkspaceLocked = errors.New("workspace locked by another process")

// DefaultPatterns tracks markdown posts and the assets they embed.
var DefaultPatterns = []string{
	"**/*.md",
	"**/*.markdown",
	"**/*.png",
	"**/*.jpg",
	"**/*.jpeg",
	"**/*.gif",
	"**/*.svg",
	"**/*.webp",
}

type Workspace struct {
	Root        string
	MetadataDir string
	LogsDir     string
	JournalPath string

	flock *flock.Flock
}

func NewWorkspace(rootDir string) (*Workspace, error) {
	root, err := utils.ResolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root %s: %w", rootDir, err)
	}

	metadata := filepath.Join(root, metadataDir)
	return &Workspace{
		Root:        root,
		MetadataDir: metadata,
		LogsDir:     filepath.Join(metadata, logsDir),
		JournalPath: filepath.Join(metadata, journalFile),
		flock:       flock.New(filepath.Join(metadata, lockFile)),
	}, nil
}

// Lock takes the single-instance lock. Two sync runs over one workspace
// would race each other's journal and downloads.
func (w *Workspace) Lock() error {
	if err := utils.EnsureDir(w.MetadataDir); err != nil {
		return fmt.Errorf("create metadata dir %s: %w", w.MetadataDir, err)
	}

	locked, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("lock workspace: %w", err)
	}
	if !locked {
		return ErrWorkspaceLocked
	}
	return nil
}

func (w *Workspace) Unlock() error {
	if !w.flock.Locked() {
		return nil
	}
	if err := w.flock.Unlock(); err != nil {
		return fmt.Errorf("unlock workspace: %w", err)
	}
	return os.Remove(w.flock.Path())
}

// Setup creates the workspace directories and takes the lock.
func (w *Workspace) Setup() error {
	if err := w.Lock(); err != nil {
		return err
	}
	slog.Info("workspace", "root", w.Root)

	for _, dir := range []string{w.MetadataDir, w.LogsDir} {
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// AbsPath resolves a sync-relative path inside the workspace. It rejects
// anything SafeRelPath rejects so a malicious server path can never
// escape the root.
func (w *Workspace) AbsPath(relPath string) (string, error) {
	rel, ok := utils.SafeRelPath(relPath)
	if !ok {
		return "", fmt.Errorf("invalid workspace path %q", relPath)
	}
	return filepath.Join(w.Root, filepath.FromSlash(rel)), nil
}

// Manifest builds the current workspace manifest. Files matching
// .mpignore are excluded, as is everything under dot-directories.
func (w *Workspace) Manifest(patterns []string) ([]manifest.Entry, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	ignorer, err := w.loadIgnore()
	if err != nil {
		return nil, err
	}

	var ignoreFn manifest.IgnoreFunc
	if ignorer != nil {
		ignoreFn = func(relPath string) bool {
			return ignorer.MatchesPath(relPath)
		}
	}

	return manifest.Build(w.Root, patterns, ignoreFn)
}

// WriteFile writes a downloaded file into the workspace.
func (w *Workspace) WriteFile(relPath string, data []byte) error {
	full, err := w.AbsPath(relPath)
	if err != nil {
		return err
	}
	if err := utils.EnsureParent(full); err != nil {
		return fmt.Errorf("create parent of %s: %w", relPath, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", relPath, err)
	}
	return nil
}

// ReadFile reads a tracked file.
func (w *Workspace) ReadFile(relPath string) ([]byte, error) {
	full, err := w.AbsPath(relPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", relPath, err)
	}
	return data, nil
}

// RemoveFile deletes a tracked file, pruning empty parent directories up
// to the root.
func (w *Workspace) RemoveFile(relPath string) error {
	full, err := w.AbsPath(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", relPath, err)
	}

	for dir := filepath.Dir(full); dir != w.Root; dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			break // not empty, or gone already
		}
	}
	return nil
}

func (w *Workspace) loadIgnore() (*ignore.GitIgnore, error) {
	path := filepath.Join(w.Root, IgnoreFile)
	if !utils.FileExists(path) {
		return nil, nil
	}
	ignorer, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", IgnoreFile, err)
	}
	return ignorer, nil
}
