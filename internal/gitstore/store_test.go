package gitstore

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markpress/markpress/internal/manifest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(&Config{Root: t.TempDir()})
	require.NoError(t, err)
	return store
}

func commitFile(t *testing.T, store *Store, path, content, message string) string {
	t.Helper()
	require.NoError(t, store.WriteFile(path, []byte(content)))
	id, err := store.Commit(message, []string{path}, nil)
	require.NoError(t, err)
	return id
}

func TestOpen_InitializesEmptyRepository(t *testing.T) {
	store := newTestStore(t)

	head, err := store.HeadCommit()
	require.NoError(t, err)
	assert.Empty(t, head)

	entries, err := store.HeadManifest()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOpen_ReopensExistingRepository(t *testing.T) {
	root := t.TempDir()
	store, err := Open(&Config{Root: root})
	require.NoError(t, err)
	id := commitFile(t, store, "posts/a.md", "hello", "add a")

	reopened, err := Open(&Config{Root: root})
	require.NoError(t, err)
	head, err := reopened.HeadCommit()
	require.NoError(t, err)
	assert.Equal(t, id, head)
}

func TestCommitAndReadAtCommit(t *testing.T) {
	store := newTestStore(t)
	id := commitFile(t, store, "posts/a.md", "# Hello\n", "add post")
	require.Len(t, id, 40)

	data, err := store.ReadAtCommit(id, "posts/a.md")
	require.NoError(t, err)
	assert.Equal(t, "# Hello\n", string(data))

	// second read comes from the blob cache
	data, err = store.ReadAtCommit(id, "posts/a.md")
	require.NoError(t, err)
	assert.Equal(t, "# Hello\n", string(data))
}

func TestReadAtCommit_PathMissing(t *testing.T) {
	store := newTestStore(t)
	id := commitFile(t, store, "posts/a.md", "content", "add a")

	_, err := store.ReadAtCommit(id, "posts/other.md")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadAtCommit_EmptyCommitID(t *testing.T) {
	store := newTestStore(t)
	_, err := store.ReadAtCommit("", "posts/a.md")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadAtCommit_MissingCommitIsInfrastructure(t *testing.T) {
	store := newTestStore(t)
	commitFile(t, store, "posts/a.md", "content", "add a")

	_, err := store.ReadAtCommit(strings.Repeat("ab", 20), "posts/a.md")
	assert.ErrorIs(t, err, ErrCommitNotFound)

	_, err = store.ReadAtCommit("not-a-hash", "posts/a.md")
	assert.ErrorIs(t, err, ErrCommitNotFound)
}

func TestTreeManifest(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.WriteFile("posts/b.md", []byte("bee")))
	require.NoError(t, store.WriteFile("posts/a.md", []byte("aye")))
	id, err := store.Commit("add posts", []string{"posts/a.md", "posts/b.md"}, nil)
	require.NoError(t, err)

	entries, err := store.TreeManifest(id)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "posts/a.md", entries[0].Path)
	assert.Equal(t, "posts/b.md", entries[1].Path)
	assert.Equal(t, manifest.HashBytes([]byte("aye")), entries[0].Hash)
	assert.Equal(t, int64(3), entries[0].Size)
}

func TestCommit_RemovesPaths(t *testing.T) {
	store := newTestStore(t)
	commitFile(t, store, "posts/a.md", "keep", "add a")
	commitFile(t, store, "posts/b.md", "drop", "add b")

	id, err := store.Commit("remove b", nil, []string{"posts/b.md"})
	require.NoError(t, err)

	entries, err := store.TreeManifest(id)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "posts/a.md", entries[0].Path)

	_, err = store.ReadAtCommit(id, "posts/b.md")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCommit_NothingStagedReturnsHead(t *testing.T) {
	store := newTestStore(t)
	id := commitFile(t, store, "posts/a.md", "content", "add a")

	same, err := store.Commit("noop", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, id, same)
}

func TestCommitError_WrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := &CommitError{Message: "sync batch", Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "sync batch")
	assert.Contains(t, err.Error(), "disk full")
}
