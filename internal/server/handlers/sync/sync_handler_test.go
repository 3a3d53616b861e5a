package sync

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markpress/markpress/internal/gitstore"
	"github.com/markpress/markpress/internal/manifest"
	"github.com/markpress/markpress/internal/merge"
	syncsvc "github.com/markpress/markpress/internal/server/sync"
)

type stubMerger struct{}

func (stubMerger) MergeFile(_ context.Context, current, _, _ []byte) ([]byte, int, error) {
	return current, 0, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *gitstore.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := gitstore.Open(&gitstore.Config{Root: t.TempDir()})
	require.NoError(t, err)

	h := New(syncsvc.NewService(store, merge.NewEngine(stubMerger{})))

	r := gin.New()
	r.POST("/api/v1/sync/status", h.Status)
	r.POST("/api/v1/sync/commit", h.Commit)
	r.GET("/api/v1/sync/download", h.Download)
	return r, store
}

func seedStore(t *testing.T, store *gitstore.Store, path, content string) string {
	t.Helper()
	require.NoError(t, store.WriteFile(path, []byte(content)))
	commit, err := store.Commit("seed", []string{path}, nil)
	require.NoError(t, err)
	return commit
}

func commitForm(t *testing.T, baseCommit string, actions []ManifestAction, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("baseCommit", baseCommit))

	manifestJSON, err := json.Marshal(actions)
	require.NoError(t, err)
	require.NoError(t, w.WriteField("manifest", string(manifestJSON)))

	for i, action := range actions {
		content, ok := files[action.Path]
		if !ok {
			continue
		}
		part, err := w.CreateFormFile(partName(i), filepath.Base(action.Path))
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestStatusHandler(t *testing.T) {
	r, store := newTestRouter(t)
	seedStore(t, store, "posts/remote.md", "# remote\n")

	body, err := json.Marshal(StatusRequest{
		Files: []ManifestFile{
			{Path: "posts/local.md", Hash: manifest.HashBytes([]byte("# local\n")), Size: 8},
		},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/status", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var res StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.NotEmpty(t, res.ServerCommit)

	actions := map[string]string{}
	for _, item := range res.Plan {
		actions[item.Path] = item.Action
	}
	assert.Equal(t, "upload", actions["posts/local.md"])
	assert.Equal(t, "download", actions["posts/remote.md"])
}

func TestStatusHandler_BadBase(t *testing.T) {
	r, store := newTestRouter(t)
	seedStore(t, store, "posts/a.md", "a\n")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/status",
		strings.NewReader(`{"baseCommit":"deadbeefdeadbeefdeadbeefdeadbeefdeadbeef"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "E_SYNC_BAD_BASE")
}

func TestCommitHandler_RoundTrip(t *testing.T) {
	r, store := newTestRouter(t)

	form, contentType := commitForm(t, "",
		[]ManifestAction{{Path: "posts/hello.md", Action: "add"}},
		map[string]string{"posts/hello.md": "# hello\n"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/commit", form)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res CommitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Results, 1)
	assert.Equal(t, "applied", res.Results[0].Outcome)
	assert.Equal(t, 1, res.FilesSynced)
	require.NotEmpty(t, res.NewBaseCommit)

	content, err := store.ReadAtCommit(res.NewBaseCommit, "posts/hello.md")
	require.NoError(t, err)
	assert.Equal(t, "# hello\n", string(content))
}

func TestCommitHandler_NestedPathsAndSharedBasenames(t *testing.T) {
	// Multipart part filenames arrive reduced to their basename, so the
	// directory component must survive through the manifest-index keying.
	r, store := newTestRouter(t)

	form, contentType := commitForm(t, "",
		[]ManifestAction{
			{Path: "posts/2026/index.md", Action: "add"},
			{Path: "drafts/index.md", Action: "add"},
		},
		map[string]string{
			"posts/2026/index.md": "# published\n",
			"drafts/index.md":     "# draft\n",
		})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/commit", form)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res CommitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Results, 2)
	for _, fr := range res.Results {
		assert.Equal(t, "applied", fr.Outcome, fr.Path)
	}

	content, err := store.ReadAtCommit(res.NewBaseCommit, "posts/2026/index.md")
	require.NoError(t, err)
	assert.Equal(t, "# published\n", string(content))
	content, err = store.ReadAtCommit(res.NewBaseCommit, "drafts/index.md")
	require.NoError(t, err)
	assert.Equal(t, "# draft\n", string(content))
}

func TestCommitHandler_MissingContentPart(t *testing.T) {
	r, _ := newTestRouter(t)

	form, contentType := commitForm(t, "",
		[]ManifestAction{{Path: "posts/hello.md", Action: "add"}}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/commit", form)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no content part")
}

func TestCommitHandler_Delete(t *testing.T) {
	r, store := newTestRouter(t)
	base := seedStore(t, store, "posts/gone.md", "gone\n")

	form, contentType := commitForm(t, base,
		[]ManifestAction{{Path: "posts/gone.md", Action: "delete"}}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/commit", form)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res CommitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Results, 1)
	assert.Equal(t, "applied", res.Results[0].Outcome)
}

func TestDownloadHandler(t *testing.T) {
	r, store := newTestRouter(t)
	seedStore(t, store, "posts/a.md", "# a\n")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/download?path=posts/a.md", nil)
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# a\n", rec.Body.String())
	etag := rec.Header().Get("ETag")
	assert.Equal(t, manifest.HashBytes([]byte("# a\n")), etag)

	// content-addressed caching round trip
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/sync/download?path=posts/a.md", nil)
	req.Header.Set("If-None-Match", etag)
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotModified, rec.Code)
}

func TestDownloadHandler_Invalid(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/download?path=../etc/passwd", nil)
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/sync/download?path=posts/missing.md", nil)
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
