// Package sync exposes the sync protocol over HTTP: status planning,
// multipart commit batches, and content download.
package sync

import (
	syncsvc "github.com/markpress/markpress/internal/server/sync"
)

type SyncHandler struct {
	svc *syncsvc.Service
}

func New(svc *syncsvc.Service) *SyncHandler {
	return &SyncHandler{svc: svc}
}
