// Package merge implements the hybrid content merge: a structured
// three-way merge over markdown front matter, a line-based three-way
// merge over the body, and a replace-or-flag rule for binary content.
package merge

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/markpress/markpress/internal/utils"
)

// FileMerger runs a line-based three-way merge. It returns the merged
// content and the number of conflicting hunks; a non-nil error means the
// merge machinery itself failed, never that the content conflicts.
type FileMerger interface {
	MergeFile(ctx context.Context, current, base, other []byte) ([]byte, int, error)
}

// Engine merges one file at a time. Safe for concurrent use.
type Engine struct {
	merger FileMerger
}

func NewEngine(merger FileMerger) *Engine {
	return &Engine{merger: merger}
}

// Merge reconciles the client's copy of path with the server's, relative
// to the base both sides last agreed on. base is nil when no agreed base
// exists. A clean result loses no change from either side; a conflicted
// result preserves both candidates in content markers or in Detail.
func (e *Engine) Merge(ctx context.Context, path string, base, server, client []byte) (*Result, error) {
	// trivial agreement short-circuits every content rule
	if bytes.Equal(server, client) {
		return &Result{Content: client}, nil
	}

	if e.isBinary(base, server, client) || !utils.IsMarkdownPath(path) {
		return e.mergeOpaque(base, server, client)
	}
	return e.mergeMarkdown(ctx, path, base, server, client)
}

func (e *Engine) isBinary(base, server, client []byte) bool {
	return utils.IsBinaryContent(base) || utils.IsBinaryContent(server) || utils.IsBinaryContent(client)
}

// mergeOpaque handles content that is never line-merged. A single-sided
// change wins; anything else is a whole-file conflict so neither side's
// bytes silently overwrite the other's.
func (e *Engine) mergeOpaque(base, server, client []byte) (*Result, error) {
	if base != nil {
		if bytes.Equal(client, base) {
			return &Result{Content: server}, nil
		}
		if bytes.Equal(server, base) {
			return &Result{Content: client}, nil
		}
	}
	return &Result{
		Content:    server,
		Conflicted: true,
		Detail: &Detail{
			Binary:  true,
			Message: "content changed on both sides and cannot be line-merged; refusing to pick either",
		},
	}, nil
}

func (e *Engine) mergeMarkdown(ctx context.Context, path string, base, server, client []byte) (*Result, error) {
	baseFields, baseBody, err := splitDocument(base)
	if err != nil {
		// a corrupt base is a repository problem, not the client's input
		return nil, &InfrastructureError{Op: "parse base front matter", Err: err}
	}
	serverFields, serverBody, err := splitDocument(server)
	if err != nil {
		return nil, &InfrastructureError{Op: "parse server front matter", Err: err}
	}
	clientFields, clientBody, err := splitDocument(client)
	if err != nil {
		return nil, err // ValidationError: reject this upload
	}

	mergedFields, fieldConflicts := mergeFields(baseFields, serverFields, clientFields)
	if len(fieldConflicts) > 0 {
		slog.Debug("front matter conflicts", "path", path, "fields", len(fieldConflicts))
	}

	mergedBody, bodyConflicts, err := e.mergeBody(ctx, baseBody, serverBody, clientBody)
	if err != nil {
		return nil, err
	}

	content, err := renderDocument(mergedFields, mergedBody)
	if err != nil {
		return nil, &InfrastructureError{Op: "render merged document", Err: err}
	}

	result := &Result{Content: content}
	if len(fieldConflicts) > 0 || bodyConflicts > 0 {
		result.Conflicted = true
		result.Detail = &Detail{
			Fields:        fieldConflicts,
			BodyConflicts: bodyConflicts,
		}
	}
	return result, nil
}

// mergeBody merges post bodies line-by-line. Single-sided changes resolve
// without invoking the external tool.
func (e *Engine) mergeBody(ctx context.Context, base, server, client []byte) ([]byte, int, error) {
	if bytes.Equal(server, client) {
		return client, 0, nil
	}
	if bytes.Equal(client, base) {
		return server, 0, nil
	}
	if bytes.Equal(server, base) {
		return client, 0, nil
	}

	merged, conflicts, err := e.merger.MergeFile(ctx, server, base, client)
	if err != nil {
		return nil, 0, &InfrastructureError{Op: "merge body", Err: err}
	}
	if conflicts < 0 {
		return nil, 0, &InfrastructureError{Op: "merge body", Err: fmt.Errorf("negative conflict count %d", conflicts)}
	}
	return merged, conflicts, nil
}
