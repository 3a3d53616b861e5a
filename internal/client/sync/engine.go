// Package sync drives one sync round from the client side: plan against
// the server, upload local changes, download remote ones, and record the
// new base in the journal.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	stdsync "sync"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"

	"github.com/markpress/markpress/internal/client/sdk"
	"github.com/markpress/markpress/internal/client/workspace"
	"github.com/markpress/markpress/internal/manifest"
)

const defaultMaxDownloads = 4

type Config struct {
	Workspace *workspace.Workspace
	SDK       *sdk.SDK
	Journal   *Journal
	// Patterns narrows which files sync. Empty means the workspace
	// defaults.
	Patterns []string
	// MaxDownloads bounds concurrent downloads.
	MaxDownloads int
}

type Engine struct {
	ws      *workspace.Workspace
	api     *sdk.SDK
	journal *Journal

	patterns     []string
	maxDownloads int
}

func NewEngine(cfg *Config) *Engine {
	maxDownloads := cfg.MaxDownloads
	if maxDownloads <= 0 {
		maxDownloads = defaultMaxDownloads
	}
	return &Engine{
		ws:           cfg.Workspace,
		api:          cfg.SDK,
		journal:      cfg.Journal,
		patterns:     cfg.Patterns,
		maxDownloads: maxDownloads,
	}
}

// Run performs one full sync round. A single file failing to upload or
// download never aborts the round; it lands in the result as an error
// entry instead.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	local, err := e.ws.Manifest(e.patterns)
	if err != nil {
		return nil, fmt.Errorf("scan workspace: %w", err)
	}
	localMap := manifest.AsMap(local)

	baseCommit, err := e.journal.BaseCommit()
	if err != nil {
		return nil, err
	}

	status, err := e.requestStatus(ctx, &baseCommit, local)
	if err != nil {
		return nil, err
	}

	result := &Result{}

	var actions []sdk.ManifestAction
	uploads := make(map[string][]byte)
	downloads := mapset.NewThreadUnsafeSet[string]()
	var localDeletes []string

	for _, item := range status.Plan {
		switch item.Action {
		case sdk.ActionNoop:

		case sdk.ActionDownload:
			downloads.Add(item.Path)

		case sdk.ActionUpload, sdk.ActionConflict:
			// conflict candidates still upload; the server's merge
			// engine settles them
			content, readErr := e.ws.ReadFile(item.Path)
			if readErr != nil {
				slog.Error("read upload", "path", item.Path, "error", readErr)
				result.add(FileReport{Path: item.Path, Status: StatusError, Message: "could not read local file"})
				continue
			}
			actions = append(actions, sdk.ManifestAction{Path: item.Path, Action: e.uploadAction(item.Path)})
			uploads[item.Path] = content

		case sdk.ActionDelete:
			if _, existsLocally := localMap[item.Path]; existsLocally {
				// removed on the server; mirror it locally after the
				// commit phase
				localDeletes = append(localDeletes, item.Path)
			} else {
				actions = append(actions, sdk.ManifestAction{Path: item.Path, Action: "delete"})
			}

		default:
			slog.Warn("unknown plan action", "path", item.Path, "action", item.Action)
		}
	}

	newBase := status.ServerCommit
	if len(actions) > 0 {
		commitBase, err := e.commit(ctx, baseCommit, actions, uploads, downloads, result)
		if err != nil {
			return nil, err
		}
		newBase = commitBase
	}

	e.download(ctx, downloads, localMap, result)

	// local deletes run last so a failed round never destroys the only
	// copy of a post
	for _, path := range localDeletes {
		if err := e.ws.RemoveFile(path); err != nil {
			slog.Error("local delete", "path", path, "error", err)
			result.add(FileReport{Path: path, Status: StatusError, Message: "could not delete local file"})
			continue
		}
		e.journalDelete(path)
		result.add(FileReport{Path: path, Status: StatusDeletedLocal})
	}

	if err := e.journal.SetBaseCommit(newBase); err != nil {
		return nil, err
	}
	result.BaseCommit = newBase
	return result, nil
}

// requestStatus fetches the plan, recovering once from a stale base: a
// server that lost our base commit (repo rebuilt) means we restart from
// scratch, not fail.
func (e *Engine) requestStatus(ctx context.Context, baseCommit *string, local []manifest.Entry) (*sdk.StatusResponse, error) {
	files := make([]sdk.ManifestFile, 0, len(local))
	for _, entry := range local {
		files = append(files, sdk.ManifestFile{Path: entry.Path, Hash: entry.Hash, Size: entry.Size})
	}

	status, err := e.api.Sync.Status(ctx, &sdk.StatusRequest{BaseCommit: *baseCommit, Files: files})
	if sdk.IsCode(err, sdk.CodeSyncBadBase) {
		slog.Warn("server does not know our base commit, resyncing from scratch", "base", *baseCommit)
		*baseCommit = ""
		status, err = e.api.Sync.Status(ctx, &sdk.StatusRequest{Files: files})
	}
	if err != nil {
		return nil, fmt.Errorf("sync status: %w", err)
	}
	return status, nil
}

func (e *Engine) commit(ctx context.Context, baseCommit string, actions []sdk.ManifestAction, uploads map[string][]byte, downloads mapset.Set[string], result *Result) (string, error) {
	commit, err := e.api.Sync.Commit(ctx, baseCommit, actions, uploads)
	if err != nil {
		return "", fmt.Errorf("sync commit: %w", err)
	}

	// paths that did not apply cleanly keep their local copy; pulling
	// the server version over them would destroy the author's edit
	keepLocal := mapset.NewThreadUnsafeSet[string]()

	for _, fr := range commit.Results {
		switch fr.Outcome {
		case sdk.OutcomeApplied:
			if content, uploaded := uploads[fr.Path]; uploaded {
				e.journalSet(manifest.Entry{
					Path: fr.Path,
					Hash: manifest.HashBytes(content),
					Size: int64(len(content)),
				})
				result.add(FileReport{Path: fr.Path, Status: StatusUploaded, Size: int64(len(content))})
			} else {
				e.journalDelete(fr.Path)
				result.add(FileReport{Path: fr.Path, Status: StatusDeletedRemote})
			}

		case sdk.OutcomeConflict:
			keepLocal.Add(fr.Path)
			result.add(FileReport{
				Path:     fr.Path,
				Status:   StatusConflict,
				Message:  fr.Message,
				Conflict: fr.Conflict,
			})

		case sdk.OutcomeSkipped:
			keepLocal.Add(fr.Path)
			result.add(FileReport{Path: fr.Path, Status: StatusSkipped, Message: fr.Message})

		default:
			keepLocal.Add(fr.Path)
			result.add(FileReport{Path: fr.Path, Status: StatusError, Message: fr.Message})
		}
	}

	for _, path := range commit.ToDownload {
		downloads.Add(path)
	}
	for path := range keepLocal.Iter() {
		downloads.Remove(path)
	}
	return commit.NewBaseCommit, nil
}

func (e *Engine) download(ctx context.Context, downloads mapset.Set[string], localMap map[string]manifest.Entry, result *Result) {
	var mu stdsync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxDownloads)

	for path := range downloads.Iter() {
		path := path
		g.Go(func() error {
			var etag string
			if entry, ok := localMap[path]; ok {
				etag = entry.Hash
			}

			res, err := e.api.Sync.Download(gctx, path, etag)
			if err != nil {
				slog.Error("download", "path", path, "error", err)
				mu.Lock()
				result.add(FileReport{Path: path, Status: StatusError, Message: "download failed"})
				mu.Unlock()
				return nil
			}

			if res.NotModified {
				e.journalSet(manifest.Entry{Path: path, Hash: etag, Size: localMap[path].Size})
				return nil
			}

			if err := e.ws.WriteFile(path, res.Content); err != nil {
				slog.Error("write download", "path", path, "error", err)
				mu.Lock()
				result.add(FileReport{Path: path, Status: StatusError, Message: "could not write local file"})
				mu.Unlock()
				return nil
			}

			e.journalSet(manifest.Entry{Path: path, Hash: res.Hash, Size: int64(len(res.Content))})
			mu.Lock()
			result.add(FileReport{Path: path, Status: StatusDownloaded, Size: int64(len(res.Content))})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers report their own failures
}

// uploadAction distinguishes a first-time upload from an update of a
// previously synced file.
func (e *Engine) uploadAction(path string) string {
	known, err := e.journal.Has(path)
	if err != nil {
		slog.Warn("journal lookup", "path", path, "error", err)
	}
	if known {
		return "update"
	}
	return "add"
}

func (e *Engine) journalSet(entry manifest.Entry) {
	if err := e.journal.SetFile(entry); err != nil {
		slog.Error("journal update", "path", entry.Path, "error", err)
	}
}

func (e *Engine) journalDelete(path string) {
	if err := e.journal.DeleteFile(path); err != nil {
		slog.Error("journal delete", "path", path, "error", err)
	}
}
