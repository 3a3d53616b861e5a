package sync

import (
	"github.com/markpress/markpress/internal/manifest"
	"github.com/markpress/markpress/internal/merge"
	"github.com/markpress/markpress/internal/syncplan"
)

// Outcome is the closed set of per-file results of a commit. Every call
// site must handle all four.
type Outcome string

const (
	OutcomeApplied  Outcome = "applied"
	OutcomeConflict Outcome = "conflict"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeError    Outcome = "error"
)

// FileAction is the client's declared intent for one uploaded file.
type FileAction string

const (
	FileAdd    FileAction = "add"
	FileUpdate FileAction = "update"
	FileDelete FileAction = "delete"
)

// Upload is one file submitted in a commit request.
type Upload struct {
	Path    string
	Action  FileAction
	Content []byte
}

type StatusRequest struct {
	Files      []manifest.Entry
	BaseCommit string
}

type StatusResult struct {
	Plan         []syncplan.Item
	ServerCommit string
}

// FileResult reports what happened to one uploaded file.
type FileResult struct {
	Path     string
	Outcome  Outcome
	Message  string
	Conflict *merge.Detail
}

type CommitRequest struct {
	BaseCommit string
	Uploads    []Upload
}

type CommitResult struct {
	Results       []FileResult
	ToDownload    []string
	NewBaseCommit string
	FilesSynced   int
}
