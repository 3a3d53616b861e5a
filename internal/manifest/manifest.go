// Package manifest builds and compares content manifests. Both the CLI
// and the server describe their view of the post tree as a flat list of
// entries keyed by git blob hash, so the two sides can compare state
// without exchanging file contents.
package manifest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-git/v5/plumbing"
)

// Entry describes one tracked file.
type Entry struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// IgnoreFunc reports whether a workspace-relative path should be excluded
// from the manifest.
type IgnoreFunc func(relPath string) bool

// HashBytes returns the git blob hash of data. Using the same hash as the
// server's git tree means a client manifest entry is directly comparable
// with a tree entry.
func HashBytes(data []byte) string {
	return plumbing.ComputeHash(plumbing.BlobObject, data).String()
}

// HashFile returns the git blob hash of the file at path.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return HashBytes(data), nil
}

// Build walks root and returns entries for every tracked file, sorted by
// path. Patterns are doublestar globs relative to root; a file is tracked
// when it matches at least one pattern and ignore returns false for it.
func Build(root string, patterns []string, ignore IgnoreFunc) ([]Entry, error) {
	var entries []Entry

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && strings.HasPrefix(filepath.Base(rel), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(filepath.Base(rel), ".") {
			return nil
		}
		if !matchesAny(patterns, rel) {
			return nil
		}
		if ignore != nil && ignore(rel) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}

		hash, hashErr := HashFile(path)
		if hashErr != nil {
			return hashErr
		}

		entries = append(entries, Entry{
			Path: rel,
			Hash: hash,
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("build manifest: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// AsMap indexes entries by path.
func AsMap(entries []Entry) map[string]Entry {
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		m[e.Path] = e
	}
	return m
}

func matchesAny(patterns []string, rel string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}
