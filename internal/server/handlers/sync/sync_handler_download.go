package sync

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/markpress/markpress/internal/gitstore"
	"github.com/markpress/markpress/internal/server/handlers/api"
	"github.com/markpress/markpress/internal/utils"
)

func (h *SyncHandler) Download(ctx *gin.Context) {
	var req DownloadRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("bind download request: %w", err))
		return
	}

	path, ok := utils.SafeRelPath(req.Path)
	if !ok {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeSyncInvalidPath, fmt.Errorf("invalid path %q", req.Path))
		return
	}

	content, hash, err := h.svc.Download(path)
	if errors.Is(err, gitstore.ErrNotFound) {
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeContentNotFound, fmt.Errorf("%s not found", path))
		return
	}
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	// blob hashes are content-addressed, so they double as ETags
	if match := ctx.GetHeader("If-None-Match"); match == hash {
		ctx.Status(http.StatusNotModified)
		return
	}

	ctx.Header("ETag", hash)
	ctx.Data(http.StatusOK, utils.DetectContentType(path), content)
}
