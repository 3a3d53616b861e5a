// Package sync coordinates the two-phase sync protocol on the server:
// a lock-free status phase that plans work against the current tree, and
// a serialized commit phase that merges uploads and records one batch
// commit.
package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	stdsync "sync"

	"github.com/google/uuid"

	"github.com/markpress/markpress/internal/gitstore"
	"github.com/markpress/markpress/internal/manifest"
	"github.com/markpress/markpress/internal/merge"
	"github.com/markpress/markpress/internal/syncplan"
	"github.com/markpress/markpress/internal/utils"
)

// ErrBadBaseCommit means the client referenced a base commit the
// repository does not have. The client must run status again and retry
// from the fresh base.
var ErrBadBaseCommit = errors.New("unknown base commit")

// Service is the sync coordinator. Status runs lock-free; Commit holds
// the service mutex so at most one commit batch mutates the tree at a
// time.
type Service struct {
	store  *gitstore.Store
	engine *merge.Engine

	mu stdsync.Mutex
}

func NewService(store *gitstore.Store, engine *merge.Engine) *Service {
	return &Service{store: store, engine: engine}
}

// Status plans the client's sync round against the current server tree.
// It never mutates the repository.
func (s *Service) Status(ctx context.Context, req *StatusRequest) (*StatusResult, error) {
	serverCommit, err := s.store.HeadCommit()
	if err != nil {
		return nil, fmt.Errorf("resolve server head: %w", err)
	}

	serverManifest, err := s.store.TreeManifest(serverCommit)
	if err != nil {
		return nil, fmt.Errorf("read server manifest: %w", err)
	}

	baseManifest, err := s.manifestAtBase(req.BaseCommit)
	if err != nil {
		return nil, err
	}

	return &StatusResult{
		Plan:         syncplan.Build(req.Files, serverManifest, baseManifest),
		ServerCommit: serverCommit,
	}, nil
}

// Download returns the content and blob hash of path at the current
// head. gitstore.ErrNotFound when the path is not tracked.
func (s *Service) Download(path string) ([]byte, string, error) {
	head, err := s.store.HeadCommit()
	if err != nil {
		return nil, "", fmt.Errorf("resolve server head: %w", err)
	}
	content, err := s.store.ReadAtCommit(head, path)
	if err != nil {
		return nil, "", err
	}
	return content, manifest.HashBytes(content), nil
}

// Commit merges the uploaded files against the server tree and records
// everything that applied cleanly as one commit. Conflicted files are
// reported but never written; a failed file never aborts the batch.
func (s *Service) Commit(ctx context.Context, req *CommitRequest) (*CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.manifestAtBase(req.BaseCommit); err != nil {
		return nil, err
	}

	head, err := s.store.HeadCommit()
	if err != nil {
		return nil, fmt.Errorf("resolve server head: %w", err)
	}

	result := &CommitResult{}
	var written, removed []string

	for _, up := range req.Uploads {
		fr, disposition := s.applyUpload(ctx, head, req.BaseCommit, up)
		switch disposition {
		case writeFile:
			written = append(written, fr.Path)
		case removeFile:
			removed = append(removed, fr.Path)
		}
		result.Results = append(result.Results, fr)
	}

	newCommit := head
	if len(written)+len(removed) > 0 {
		message := fmt.Sprintf("sync %s: %d applied", uuid.NewString(), len(written)+len(removed))
		newCommit, err = s.store.Commit(message, written, removed)
		if err != nil {
			// worktree holds the merged files but history does not;
			// the client must retry rather than trust a base that was
			// never recorded
			slog.Error("batch commit failed", "error", err, "files", len(written)+len(removed))
			s.degradeApplied(result.Results)
			newCommit = head
		}
	}

	for i := range result.Results {
		if result.Results[i].Outcome == OutcomeApplied {
			result.FilesSynced++
		}
	}

	toDownload, err := s.computeToDownload(req.BaseCommit, newCommit, req.Uploads)
	if err != nil {
		slog.Error("compute download set", "error", err)
	} else {
		result.ToDownload = toDownload
	}

	result.NewBaseCommit = newCommit
	return result, nil
}

type fileDisposition int

const (
	keepFile fileDisposition = iota
	writeFile
	removeFile
)

// applyUpload resolves one uploaded file. A panic in merge machinery is
// contained to the file: the client sees a generic retry message and the
// detail stays in the server log.
func (s *Service) applyUpload(ctx context.Context, head, baseCommit string, up Upload) (fr FileResult, disposition fileDisposition) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic applying upload", "path", up.Path, "panic", r)
			fr = FileResult{
				Path:    up.Path,
				Outcome: OutcomeError,
				Message: fmt.Sprintf("sync failed for %s, please retry", up.Path),
			}
			disposition = keepFile
		}
	}()

	path, ok := utils.SafeRelPath(up.Path)
	if !ok {
		return FileResult{
			Path:    up.Path,
			Outcome: OutcomeSkipped,
			Message: "invalid path",
		}, keepFile
	}

	if up.Action == FileDelete {
		return s.applyDelete(head, baseCommit, path)
	}
	return s.applyContent(ctx, head, baseCommit, path, up.Content)
}

// applyDelete removes path only when the server copy still matches the
// base the client deleted from. A delete racing a remote edit is a
// conflict, never a silent loss of the edit.
func (s *Service) applyDelete(head, baseCommit, path string) (FileResult, fileDisposition) {
	serverContent, err := s.store.ReadAtCommit(head, path)
	if errors.Is(err, gitstore.ErrNotFound) {
		return FileResult{
			Path:    path,
			Outcome: OutcomeApplied,
			Message: "already deleted",
		}, keepFile
	}
	if err != nil {
		return s.infraResult(path, "read server copy", err)
	}

	baseContent, err := s.store.ReadAtCommit(baseCommit, path)
	if err != nil && !errors.Is(err, gitstore.ErrNotFound) {
		return s.infraResult(path, "read base copy", err)
	}

	if baseContent == nil || !bytes.Equal(serverContent, baseContent) {
		return FileResult{
			Path:    path,
			Outcome: OutcomeConflict,
			Message: "changed on the server since your last sync; refusing to delete",
			Conflict: &merge.Detail{
				Message: "delete raced a remote edit",
			},
		}, keepFile
	}

	return FileResult{Path: path, Outcome: OutcomeApplied}, removeFile
}

func (s *Service) applyContent(ctx context.Context, head, baseCommit, path string, content []byte) (FileResult, fileDisposition) {
	serverContent, err := s.store.ReadAtCommit(head, path)
	if err != nil && !errors.Is(err, gitstore.ErrNotFound) {
		return s.infraResult(path, "read server copy", err)
	}

	baseContent, err := s.store.ReadAtCommit(baseCommit, path)
	if err != nil && !errors.Is(err, gitstore.ErrNotFound) {
		return s.infraResult(path, "read base copy", err)
	}

	if serverContent == nil {
		// gone from the server tree; only an unchanged client copy may
		// follow the deletion
		if baseContent != nil {
			if bytes.Equal(baseContent, content) {
				return FileResult{
					Path:    path,
					Outcome: OutcomeSkipped,
					Message: "removed on the server; nothing to apply",
				}, keepFile
			}
			return FileResult{
				Path:    path,
				Outcome: OutcomeConflict,
				Message: "deleted on the server but edited locally",
				Conflict: &merge.Detail{
					Message: "edit raced a remote delete",
				},
			}, keepFile
		}
		if err := s.store.WriteFile(path, content); err != nil {
			return s.infraResult(path, "write file", err)
		}
		return FileResult{Path: path, Outcome: OutcomeApplied}, writeFile
	}

	merged, err := s.engine.Merge(ctx, path, baseContent, serverContent, content)
	if merge.IsValidation(err) {
		return FileResult{
			Path:    path,
			Outcome: OutcomeSkipped,
			Message: err.Error(),
		}, keepFile
	}
	if err != nil {
		return s.infraResult(path, "merge", err)
	}

	if merged.Conflicted {
		return FileResult{
			Path:     path,
			Outcome:  OutcomeConflict,
			Message:  "needs manual resolution",
			Conflict: merged.Detail,
		}, keepFile
	}

	if bytes.Equal(merged.Content, serverContent) {
		// server already holds the merged result; nothing to record
		return FileResult{Path: path, Outcome: OutcomeApplied}, keepFile
	}

	if err := s.store.WriteFile(path, merged.Content); err != nil {
		return s.infraResult(path, "write file", err)
	}
	return FileResult{Path: path, Outcome: OutcomeApplied}, writeFile
}

// infraResult logs the full failure server-side and hands the client a
// generic retry message.
func (s *Service) infraResult(path, op string, err error) (FileResult, fileDisposition) {
	slog.Error("sync file failed", "path", path, "op", op, "error", err)
	return FileResult{
		Path:    path,
		Outcome: OutcomeError,
		Message: fmt.Sprintf("sync failed for %s, please retry", path),
	}, keepFile
}

// degradeApplied downgrades applied results after a failed batch commit.
// The files sit in the worktree but history never recorded them, so
// claiming success would hand the client a base it cannot use.
func (s *Service) degradeApplied(results []FileResult) {
	for i := range results {
		if results[i].Outcome != OutcomeApplied {
			continue
		}
		results[i].Outcome = OutcomeError
		results[i].Message = fmt.Sprintf("sync failed for %s, please retry", results[i].Path)
	}
}

// computeToDownload lists the paths whose content at the new head differs
// from both the client's base and what the client just uploaded. That
// covers remote edits the client has not seen and merge results that
// combined both sides.
func (s *Service) computeToDownload(baseCommit, newCommit string, uploads []Upload) ([]string, error) {
	newEntries, err := s.store.TreeManifest(newCommit)
	if err != nil {
		return nil, err
	}
	baseEntries, err := s.store.TreeManifest(baseCommit)
	if err != nil {
		return nil, err
	}

	baseMap := manifest.AsMap(baseEntries)
	uploaded := make(map[string]string, len(uploads))
	for _, up := range uploads {
		if path, ok := utils.SafeRelPath(up.Path); ok && up.Action != FileDelete {
			uploaded[path] = manifest.HashBytes(up.Content)
		}
	}

	var toDownload []string
	for _, entry := range newEntries {
		if base, ok := baseMap[entry.Path]; ok && base.Hash == entry.Hash {
			continue
		}
		if hash, ok := uploaded[entry.Path]; ok && hash == entry.Hash {
			continue
		}
		toDownload = append(toDownload, entry.Path)
	}
	sort.Strings(toDownload)
	return toDownload, nil
}

func (s *Service) manifestAtBase(baseCommit string) ([]manifest.Entry, error) {
	entries, err := s.store.TreeManifest(baseCommit)
	if errors.Is(err, gitstore.ErrCommitNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrBadBaseCommit, baseCommit)
	}
	if err != nil {
		return nil, fmt.Errorf("read base manifest: %w", err)
	}
	return entries, nil
}
