package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markpress/markpress/internal/gitstore"
	"github.com/markpress/markpress/internal/manifest"
	"github.com/markpress/markpress/internal/merge"
	"github.com/markpress/markpress/internal/syncplan"
)

type fakeMerger struct {
	content   []byte
	conflicts int
	err       error
	calls     int
	mu        stdsync.Mutex
}

func (f *fakeMerger) MergeFile(_ context.Context, current, base, other []byte) ([]byte, int, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, 0, f.err
	}
	if f.content != nil {
		return f.content, f.conflicts, nil
	}
	return current, 0, nil
}

func newTestService(t *testing.T, merger merge.FileMerger) (*Service, *gitstore.Store) {
	t.Helper()
	store, err := gitstore.Open(&gitstore.Config{Root: t.TempDir()})
	require.NoError(t, err)
	if merger == nil {
		merger = &fakeMerger{}
	}
	return NewService(store, merge.NewEngine(merger)), store
}

func seed(t *testing.T, store *gitstore.Store, files map[string]string) string {
	t.Helper()
	paths := make([]string, 0, len(files))
	for path, content := range files {
		require.NoError(t, store.WriteFile(path, []byte(content)))
		paths = append(paths, path)
	}
	commit, err := store.Commit("seed", paths, nil)
	require.NoError(t, err)
	return commit
}

func TestStatus_EmptyRepository(t *testing.T) {
	svc, _ := newTestService(t, nil)

	res, err := svc.Status(context.Background(), &StatusRequest{})
	require.NoError(t, err)
	assert.Empty(t, res.ServerCommit)
	assert.Empty(t, res.Plan)
}

func TestStatus_PlansAgainstServerTree(t *testing.T) {
	svc, store := newTestService(t, nil)
	base := seed(t, store, map[string]string{"posts/shared.md": "# shared\n"})
	seed(t, store, map[string]string{"posts/remote.md": "# remote\n"})

	res, err := svc.Status(context.Background(), &StatusRequest{
		BaseCommit: base,
		Files: []manifest.Entry{
			{Path: "posts/shared.md", Hash: manifest.HashBytes([]byte("# shared\n"))},
			{Path: "posts/local.md", Hash: manifest.HashBytes([]byte("# local\n"))},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.ServerCommit)

	actions := map[string]syncplan.Action{}
	for _, item := range res.Plan {
		actions[item.Path] = item.Action
	}
	assert.Equal(t, syncplan.ActionNoop, actions["posts/shared.md"])
	assert.Equal(t, syncplan.ActionUpload, actions["posts/local.md"])
	assert.Equal(t, syncplan.ActionDownload, actions["posts/remote.md"])
}

func TestStatus_ConsecutiveCallsReturnIdenticalPlans(t *testing.T) {
	svc, store := newTestService(t, nil)
	base := seed(t, store, map[string]string{"posts/shared.md": "# shared\n"})
	seed(t, store, map[string]string{"posts/remote.md": "# remote\n"})

	req := &StatusRequest{
		BaseCommit: base,
		Files: []manifest.Entry{
			{Path: "posts/shared.md", Hash: manifest.HashBytes([]byte("# shared\n"))},
			{Path: "posts/local.md", Hash: manifest.HashBytes([]byte("# local\n"))},
		},
	}

	first, err := svc.Status(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Status(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ServerCommit, second.ServerCommit)
	assert.Equal(t, first.Plan, second.Plan)
}

func TestStatus_UnknownBaseCommit(t *testing.T) {
	svc, store := newTestService(t, nil)
	seed(t, store, map[string]string{"posts/a.md": "a\n"})

	_, err := svc.Status(context.Background(), &StatusRequest{
		BaseCommit: "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef",
	})
	assert.ErrorIs(t, err, ErrBadBaseCommit)
}

func TestCommit_NewFileApplied(t *testing.T) {
	svc, store := newTestService(t, nil)

	res, err := svc.Commit(context.Background(), &CommitRequest{
		Uploads: []Upload{
			{Path: "posts/hello.md", Action: FileAdd, Content: []byte("# hello\n")},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, OutcomeApplied, res.Results[0].Outcome)
	assert.Equal(t, 1, res.FilesSynced)
	require.NotEmpty(t, res.NewBaseCommit)

	content, err := store.ReadAtCommit(res.NewBaseCommit, "posts/hello.md")
	require.NoError(t, err)
	assert.Equal(t, "# hello\n", string(content))
}

func TestCommit_ClientOnlyEditWinsWithoutMergeTool(t *testing.T) {
	merger := &fakeMerger{}
	svc, store := newTestService(t, merger)
	base := seed(t, store, map[string]string{"posts/a.md": "old body\n"})

	res, err := svc.Commit(context.Background(), &CommitRequest{
		BaseCommit: base,
		Uploads: []Upload{
			{Path: "posts/a.md", Action: FileUpdate, Content: []byte("new body\n")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Results[0].Outcome)
	assert.Zero(t, merger.calls)

	content, err := store.ReadAtCommit(res.NewBaseCommit, "posts/a.md")
	require.NoError(t, err)
	assert.Equal(t, "new body\n", string(content))
}

func TestCommit_BodyConflictNotCommitted(t *testing.T) {
	merger := &fakeMerger{content: []byte("<<<<<<< server\n"), conflicts: 1}
	svc, store := newTestService(t, merger)
	base := seed(t, store, map[string]string{"posts/a.md": "base\n"})
	head := seed(t, store, map[string]string{"posts/a.md": "server edit\n"})

	res, err := svc.Commit(context.Background(), &CommitRequest{
		BaseCommit: base,
		Uploads: []Upload{
			{Path: "posts/a.md", Action: FileUpdate, Content: []byte("client edit\n")},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, OutcomeConflict, res.Results[0].Outcome)
	require.NotNil(t, res.Results[0].Conflict)
	assert.Equal(t, 1, res.Results[0].Conflict.BodyConflicts)
	assert.Zero(t, res.FilesSynced)

	// the conflicted content must not reach history
	assert.Equal(t, head, res.NewBaseCommit)
	content, err := store.ReadAtCommit(head, "posts/a.md")
	require.NoError(t, err)
	assert.Equal(t, "server edit\n", string(content))
}

func TestCommit_MergeToolFailureIsGenericError(t *testing.T) {
	merger := &fakeMerger{err: errors.New("merge tool exploded")}
	svc, store := newTestService(t, merger)
	base := seed(t, store, map[string]string{"posts/a.md": "base\n"})
	seed(t, store, map[string]string{"posts/a.md": "server edit\n"})

	res, err := svc.Commit(context.Background(), &CommitRequest{
		BaseCommit: base,
		Uploads: []Upload{
			{Path: "posts/a.md", Action: FileUpdate, Content: []byte("client edit\n")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeError, res.Results[0].Outcome)
	assert.Equal(t, "sync failed for posts/a.md, please retry", res.Results[0].Message)
	assert.NotContains(t, res.Results[0].Message, "exploded")
}

func TestCommit_DeleteApplied(t *testing.T) {
	svc, store := newTestService(t, nil)
	base := seed(t, store, map[string]string{
		"posts/keep.md": "keep\n",
		"posts/gone.md": "gone\n",
	})

	res, err := svc.Commit(context.Background(), &CommitRequest{
		BaseCommit: base,
		Uploads: []Upload{
			{Path: "posts/gone.md", Action: FileDelete},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Results[0].Outcome)

	_, err = store.ReadAtCommit(res.NewBaseCommit, "posts/gone.md")
	assert.ErrorIs(t, err, gitstore.ErrNotFound)
	_, err = store.ReadAtCommit(res.NewBaseCommit, "posts/keep.md")
	assert.NoError(t, err)
}

func TestCommit_DeleteRacingRemoteEditConflicts(t *testing.T) {
	svc, store := newTestService(t, nil)
	base := seed(t, store, map[string]string{"posts/a.md": "base\n"})
	head := seed(t, store, map[string]string{"posts/a.md": "server edit\n"})

	res, err := svc.Commit(context.Background(), &CommitRequest{
		BaseCommit: base,
		Uploads: []Upload{
			{Path: "posts/a.md", Action: FileDelete},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeConflict, res.Results[0].Outcome)

	// the remote edit survives
	content, err := store.ReadAtCommit(head, "posts/a.md")
	require.NoError(t, err)
	assert.Equal(t, "server edit\n", string(content))
}

func TestCommit_EditRacingRemoteDeleteConflicts(t *testing.T) {
	svc, store := newTestService(t, nil)
	base := seed(t, store, map[string]string{"posts/a.md": "base\n", "posts/keep.md": "k\n"})
	commit, err := store.Commit("remove", nil, []string{"posts/a.md"})
	require.NoError(t, err)
	require.NotEqual(t, base, commit)

	res, err := svc.Commit(context.Background(), &CommitRequest{
		BaseCommit: base,
		Uploads: []Upload{
			{Path: "posts/a.md", Action: FileUpdate, Content: []byte("client edit\n")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeConflict, res.Results[0].Outcome)
}

func TestCommit_InvalidPathSkipped(t *testing.T) {
	svc, _ := newTestService(t, nil)

	res, err := svc.Commit(context.Background(), &CommitRequest{
		Uploads: []Upload{
			{Path: "../escape.md", Action: FileAdd, Content: []byte("x")},
			{Path: "posts/ok.md", Action: FileAdd, Content: []byte("ok\n")},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, OutcomeSkipped, res.Results[0].Outcome)
	assert.Equal(t, "invalid path", res.Results[0].Message)
	assert.Equal(t, OutcomeApplied, res.Results[1].Outcome)
	assert.Equal(t, 1, res.FilesSynced)
}

func TestCommit_UnknownBaseCommit(t *testing.T) {
	svc, store := newTestService(t, nil)
	seed(t, store, map[string]string{"posts/a.md": "a\n"})

	_, err := svc.Commit(context.Background(), &CommitRequest{
		BaseCommit: "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef",
	})
	assert.ErrorIs(t, err, ErrBadBaseCommit)
}

func TestCommit_ToDownloadExcludesOwnUploads(t *testing.T) {
	svc, store := newTestService(t, nil)
	base := seed(t, store, map[string]string{"posts/a.md": "a\n"})
	seed(t, store, map[string]string{"posts/remote.md": "remote\n"})

	res, err := svc.Commit(context.Background(), &CommitRequest{
		BaseCommit: base,
		Uploads: []Upload{
			{Path: "posts/mine.md", Action: FileAdd, Content: []byte("mine\n")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"posts/remote.md"}, res.ToDownload)
}

func TestCommit_ConcurrentBatchesSerialize(t *testing.T) {
	svc, store := newTestService(t, nil)

	var wg stdsync.WaitGroup
	for _, path := range []string{"posts/one.md", "posts/two.md"} {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			res, err := svc.Commit(context.Background(), &CommitRequest{
				Uploads: []Upload{
					{Path: path, Action: FileAdd, Content: []byte(path + "\n")},
				},
			})
			assert.NoError(t, err)
			assert.Equal(t, OutcomeApplied, res.Results[0].Outcome)
		}(path)
	}
	wg.Wait()

	head, err := store.HeadCommit()
	require.NoError(t, err)
	for _, path := range []string{"posts/one.md", "posts/two.md"} {
		_, err := store.ReadAtCommit(head, path)
		assert.NoError(t, err, path)
	}
}
