package sync

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/markpress/markpress/internal/manifest"
	"github.com/markpress/markpress/internal/server/handlers/api"
	syncsvc "github.com/markpress/markpress/internal/server/sync"
)

func (h *SyncHandler) Status(ctx *gin.Context) {
	var req StatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("bind status request: %w", err))
		return
	}

	files := make([]manifest.Entry, 0, len(req.Files))
	for _, f := range req.Files {
		files = append(files, manifest.Entry{Path: f.Path, Hash: f.Hash, Size: f.Size})
	}

	res, err := h.svc.Status(ctx.Request.Context(), &syncsvc.StatusRequest{
		BaseCommit: req.BaseCommit,
		Files:      files,
	})
	if errors.Is(err, syncsvc.ErrBadBaseCommit) {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeSyncBadBase, err)
		return
	}
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	plan := make([]PlanItem, 0, len(res.Plan))
	for _, item := range res.Plan {
		plan = append(plan, PlanItem{
			Path:   item.Path,
			Action: string(item.Action),
			Reason: item.Reason,
		})
	}

	ctx.PureJSON(http.StatusOK, &StatusResponse{
		ServerCommit: res.ServerCommit,
		Plan:         plan,
	})
}
