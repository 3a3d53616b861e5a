package sdk

import (
	"fmt"
	"runtime"

	"github.com/markpress/markpress/internal/merge"
	"github.com/markpress/markpress/internal/version"
)

const (
	HeaderUserAgent = "User-Agent"
	HeaderVersion   = "X-MarkPress-Version"
)

var userAgent = fmt.Sprintf("MarkPress/%s (%s; %s; %s)", version.Version, version.Revision, runtime.GOOS, runtime.GOARCH)

// ManifestFile is one entry of the local workspace manifest.
type ManifestFile struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

type StatusRequest struct {
	BaseCommit string         `json:"baseCommit"`
	Files      []ManifestFile `json:"files"`
}

type PlanItem struct {
	Path   string `json:"path"`
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
}

// Plan actions as the server names them.
const (
	ActionNoop     = "noop"
	ActionDownload = "download"
	ActionUpload   = "upload"
	ActionConflict = "conflict-candidate"
	ActionDelete   = "delete"
)

type StatusResponse struct {
	ServerCommit string     `json:"serverCommit"`
	Plan         []PlanItem `json:"plan"`
}

// ManifestAction is one entry of the commit manifest part.
type ManifestAction struct {
	Path   string `json:"path"`
	Action string `json:"action"` // add | update | delete
}

// Per-file outcomes of a commit.
const (
	OutcomeApplied  = "applied"
	OutcomeConflict = "conflict"
	OutcomeSkipped  = "skipped"
	OutcomeError    = "error"
)

type FileResult struct {
	Path     string        `json:"path"`
	Outcome  string        `json:"outcome"`
	Message  string        `json:"message,omitempty"`
	Conflict *merge.Detail `json:"conflict,omitempty"`
}

type CommitResponse struct {
	Results       []FileResult `json:"results"`
	ToDownload    []string     `json:"toDownload"`
	NewBaseCommit string       `json:"newBaseCommit"`
	FilesSynced   int          `json:"filesSynced"`
}

// DownloadResult is one downloaded file. NotModified is true when the
// server content still matches the caller's ETag.
type DownloadResult struct {
	Path        string
	Content     []byte
	Hash        string
	NotModified bool
}
