// Package content serves rendered post previews.
package content

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/adrg/frontmatter"
	"github.com/gin-gonic/gin"

	"github.com/markpress/markpress/internal/gitstore"
	"github.com/markpress/markpress/internal/render"
	"github.com/markpress/markpress/internal/server/handlers/api"
	syncsvc "github.com/markpress/markpress/internal/server/sync"
	"github.com/markpress/markpress/internal/utils"
)

const maxPreviewBytes = 4 << 20

type ContentHandler struct {
	renderer *render.Renderer
	svc      *syncsvc.Service
}

func New(renderer *render.Renderer, svc *syncsvc.Service) *ContentHandler {
	return &ContentHandler{renderer: renderer, svc: svc}
}

// Preview renders the posted markdown to HTML without touching the
// repository. Front matter is stripped, not rendered.
func (h *ContentHandler) Preview(ctx *gin.Context) {
	source, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxPreviewBytes))
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("read preview body: %w", err))
		return
	}

	html, err := h.renderHTML(source)
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	}

	ctx.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

// View renders a tracked post at the current head.
func (h *ContentHandler) View(ctx *gin.Context) {
	path, ok := utils.SafeRelPath(ctx.Query("path"))
	if !ok || !utils.IsMarkdownPath(path) {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeSyncInvalidPath,
			fmt.Errorf("invalid post path %q", ctx.Query("path")))
		return
	}

	source, _, err := h.svc.Download(path)
	if errors.Is(err, gitstore.ErrNotFound) {
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeContentNotFound, fmt.Errorf("%s not found", path))
		return
	}
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	html, err := h.renderHTML(source)
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	ctx.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func (h *ContentHandler) renderHTML(source []byte) ([]byte, error) {
	var meta map[string]any
	body, err := frontmatter.Parse(bytes.NewReader(source), &meta)
	if err != nil {
		return nil, fmt.Errorf("parse front matter: %w", err)
	}
	return h.renderer.HTML(body)
}
