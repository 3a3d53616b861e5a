package sync

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markpress/markpress/internal/manifest"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j := NewJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, j.Open())
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournalBaseCommit(t *testing.T) {
	j := newTestJournal(t)

	commit, err := j.BaseCommit()
	require.NoError(t, err)
	assert.Empty(t, commit)

	require.NoError(t, j.SetBaseCommit("abc123"))
	require.NoError(t, j.SetBaseCommit("def456"))

	commit, err = j.BaseCommit()
	require.NoError(t, err)
	assert.Equal(t, "def456", commit)
}

func TestJournalFiles(t *testing.T) {
	j := newTestJournal(t)

	entry := manifest.Entry{Path: "posts/a.md", Hash: "h1", Size: 10}
	require.NoError(t, j.SetFile(entry))
	require.NoError(t, j.SetFile(manifest.Entry{Path: "posts/a.md", Hash: "h2", Size: 12}))
	require.NoError(t, j.SetFile(manifest.Entry{Path: "posts/b.md", Hash: "h3", Size: 3}))

	files, err := j.Files()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "h2", files[0].Hash)

	has, err := j.Has("posts/a.md")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, j.DeleteFile("posts/a.md"))
	has, err = j.Has("posts/a.md")
	require.NoError(t, err)
	assert.False(t, has)
}
