package sdk

import (
	"context"
	"fmt"
	"net/http"
	"path"

	"github.com/imroc/req/v3"
)

const (
	v1SyncStatus   = "/api/v1/sync/status"
	v1SyncCommit   = "/api/v1/sync/commit"
	v1SyncDownload = "/api/v1/sync/download"
)

type SyncAPI struct {
	client *req.Client
}

func newSyncAPI(client *req.Client) *SyncAPI {
	return &SyncAPI{client: client}
}

// Status submits the local manifest and returns the server's sync plan.
func (s *SyncAPI) Status(ctx context.Context, params *StatusRequest) (resp *StatusResponse, err error) {
	res, err := s.client.R().
		SetContext(ctx).
		SetBody(params).
		SetSuccessResult(&resp).
		Post(v1SyncStatus)

	if err := handleAPIError(res, err, "sync status"); err != nil {
		return nil, err
	}

	return resp, nil
}

// Commit uploads one batch of changes as a multipart form: the base
// commit, a manifest part listing per-file actions, and one content part
// per added or updated file. Content parts are keyed by manifest index
// ("files[0]", "files[1]", ...) since multipart filenames are reduced to
// their basename in transit and cannot carry a nested path.
func (s *SyncAPI) Commit(ctx context.Context, baseCommit string, actions []ManifestAction, files map[string][]byte) (resp *CommitResponse, err error) {
	manifestJSON, err := jsonMarshal(actions)
	if err != nil {
		return nil, fmt.Errorf("encode commit manifest: %w", err)
	}

	r := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"baseCommit": baseCommit,
			"manifest":   string(manifestJSON),
		}).
		SetSuccessResult(&resp)

	for i, action := range actions {
		content, ok := files[action.Path]
		if !ok {
			continue
		}
		r.SetFileBytes(fmt.Sprintf("files[%d]", i), path.Base(action.Path), content)
	}

	res, err := r.Post(v1SyncCommit)
	if err := handleAPIError(res, err, "sync commit"); err != nil {
		return nil, err
	}

	return resp, nil
}

// Download fetches one file at the server's head. etag may carry the hash
// of a local copy; a matching server copy comes back as NotModified with
// no content.
func (s *SyncAPI) Download(ctx context.Context, path, etag string) (*DownloadResult, error) {
	r := s.client.R().
		SetContext(ctx).
		SetQueryParam("path", path)
	if etag != "" {
		r.SetHeader("If-None-Match", etag)
	}

	res, err := r.Get(v1SyncDownload)
	if err != nil {
		return nil, fmt.Errorf("http request error: sync download %s: %w", path, err)
	}

	if res.StatusCode == http.StatusNotModified {
		return &DownloadResult{Path: path, Hash: etag, NotModified: true}, nil
	}

	if err := handleAPIError(res, nil, "sync download "+path); err != nil {
		return nil, err
	}

	content, err := res.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("read download %s: %w", path, err)
	}

	return &DownloadResult{
		Path:    path,
		Content: content,
		Hash:    res.Header.Get("ETag"),
	}, nil
}
