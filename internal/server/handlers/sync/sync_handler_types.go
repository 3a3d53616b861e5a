package sync

import (
	"github.com/markpress/markpress/internal/merge"
)

// ManifestFile is one entry of the client's workspace manifest.
type ManifestFile struct {
	Path string `json:"path" binding:"required"`
	Hash string `json:"hash" binding:"required"`
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

type StatusResponse struct {
	ServerCommit string     `json:"serverCommit"`
	Plan         []PlanItem `json:"plan"`
}

// ManifestAction is one entry of the commit manifest part. Files with
// action add or update must have a matching content part; deletes carry
// no content.
type ManifestAction struct {
	Path   string `json:"path" binding:"required"`
	Action string `json:"action" binding:"required,oneof=add update delete"`
}

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

type DownloadRequest struct {
	Path string `form:"path" binding:"required"`
}
