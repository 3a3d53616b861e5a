// Package gitstore is the version-control integration layer. It keeps the
// canonical post tree in a git repository: blob reads at arbitrary
// commits, manifest extraction from trees, batch commits of merged
// results, and the external three-way merge tool.
package gitstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/markpress/markpress/internal/manifest"
)

const blobCacheSize = 512

// Signature identifies the committer for server-side commits.
type Signature struct {
	Name  string
	Email string
}

// Config configures a Store.
type Config struct {
	// Root is the repository worktree directory.
	Root string
	// Author signs server-side commits.
	Author Signature
	// GitBin is the git executable used for merge-file. Defaults to "git".
	GitBin string
	// MergeTimeout bounds one merge tool invocation.
	MergeTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.GitBin == "" {
		c.GitBin = "git"
	}
	if c.MergeTimeout <= 0 {
		c.MergeTimeout = 30 * time.Second
	}
	if c.Author.Name == "" {
		c.Author.Name = "markpress"
	}
	if c.Author.Email == "" {
		c.Author.Email = "markpress@localhost"
	}
}

// Store wraps one git repository. Blob reads are cached by (commit, path)
// since commit content is immutable.
type Store struct {
	config *Config
	repo   *git.Repository
	cache  *lru.Cache[string, []byte]
}

// Open opens the repository at config.Root, initializing a fresh one when
// none exists.
func Open(config *Config) (*Store, error) {
	config.applyDefaults()

	repo, err := git.PlainOpen(config.Root)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = git.PlainInit(config.Root, false)
	}
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", config.Root, err)
	}

	cache, err := lru.New[string, []byte](blobCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create blob cache: %w", err)
	}

	return &Store{
		config: config,
		repo:   repo,
		cache:  cache,
	}, nil
}

// Root returns the worktree directory.
func (s *Store) Root() string {
	return s.config.Root
}

// HeadCommit returns the current HEAD commit id, or "" for an empty
// repository.
func (s *Store) HeadCommit() (string, error) {
	head, err := s.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve head: %w", err)
	}
	return head.Hash().String(), nil
}

// ReadAtCommit returns the content of path in the tree of the given
// commit. ErrNotFound when the path is absent; ErrCommitNotFound when the
// commit itself is missing.
func (s *Store) ReadAtCommit(commit, path string) ([]byte, error) {
	if commit == "" {
		return nil, ErrNotFound
	}

	cacheKey := commit + ":" + path
	if data, ok := s.cache.Get(cacheKey); ok {
		return data, nil
	}

	c, err := s.commitObject(commit)
	if err != nil {
		return nil, err
	}

	file, err := c.File(path)
	if errors.Is(err, object.ErrFileNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s at %s: %w", path, commit, err)
	}

	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("read %s at %s: %w", path, commit, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read %s at %s: %w", path, commit, err)
	}

	s.cache.Add(cacheKey, data)
	return data, nil
}

// TreeManifest returns the manifest of the tracked tree at the given
// commit, sorted by path. An empty commit id yields an empty manifest.
func (s *Store) TreeManifest(commit string) ([]manifest.Entry, error) {
	if commit == "" {
		return nil, nil
	}

	c, err := s.commitObject(commit)
	if err != nil {
		return nil, err
	}

	iter, err := c.Files()
	if err != nil {
		return nil, fmt.Errorf("iterate tree at %s: %w", commit, err)
	}

	var entries []manifest.Entry
	err = iter.ForEach(func(f *object.File) error {
		entries = append(entries, manifest.Entry{
			Path: f.Name,
			Hash: f.Hash.String(),
			Size: f.Blob.Size,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate tree at %s: %w", commit, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// HeadManifest returns the manifest at HEAD.
func (s *Store) HeadManifest() ([]manifest.Entry, error) {
	head, err := s.HeadCommit()
	if err != nil {
		return nil, err
	}
	return s.TreeManifest(head)
}

// WriteFile writes content into the worktree. It does not stage or
// commit; Commit does that for the whole batch.
func (s *Store) WriteFile(relPath string, data []byte) error {
	full := filepath.Join(s.config.Root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", relPath, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", relPath, err)
	}
	return nil
}

// Commit stages the written and removed paths and creates one commit for
// the batch, returning its id. Removed paths are deleted from worktree
// and index together. With nothing to record it returns the current HEAD
// unchanged.
func (s *Store) Commit(message string, written, removed []string) (string, error) {
	wt, err := s.repo.Worktree()
	if err != nil {
		return "", &CommitError{Message: message, Err: err}
	}

	staged := 0
	for _, p := range written {
		if _, err := wt.Add(p); err != nil {
			return "", &CommitError{Message: message, Err: fmt.Errorf("stage %s: %w", p, err)}
		}
		staged++
	}
	for _, p := range removed {
		if _, err := wt.Remove(p); err != nil {
			return "", &CommitError{Message: message, Err: fmt.Errorf("remove %s: %w", p, err)}
		}
		staged++
	}

	if staged == 0 {
		return s.HeadCommit()
	}

	now := time.Now()
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  s.config.Author.Name,
			Email: s.config.Author.Email,
			When:  now,
		},
		Committer: &object.Signature{
			Name:  s.config.Author.Name,
			Email: s.config.Author.Email,
			When:  now,
		},
	})
	if errors.Is(err, git.ErrEmptyCommit) {
		return s.HeadCommit()
	}
	if err != nil {
		return "", &CommitError{Message: message, Err: err}
	}
	return hash.String(), nil
}

func (s *Store) commitObject(commit string) (*object.Commit, error) {
	hash := plumbing.NewHash(commit)
	if hash.IsZero() {
		return nil, fmt.Errorf("%w: malformed id %q", ErrCommitNotFound, commit)
	}
	c, err := s.repo.CommitObject(hash)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrCommitNotFound, commit)
	}
	if err != nil {
		return nil, fmt.Errorf("load commit %s: %w", commit, err)
	}
	return c, nil
}
