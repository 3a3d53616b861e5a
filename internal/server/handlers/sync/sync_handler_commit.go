package sync

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"

	"github.com/markpress/markpress/internal/server/handlers/api"
	syncsvc "github.com/markpress/markpress/internal/server/sync"
)

// maxUploadBytes caps one uploaded file. Posts are text and images, not
// archives.
const maxUploadBytes = 16 << 20

func (h *SyncHandler) Commit(ctx *gin.Context) {
	form, err := ctx.MultipartForm()
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("parse multipart form: %w", err))
		return
	}

	baseCommit := ctx.PostForm("baseCommit")

	manifestJSON := ctx.PostForm("manifest")
	if manifestJSON == "" {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, errors.New("missing manifest part"))
		return
	}

	var actions []ManifestAction
	if err := json.Unmarshal([]byte(manifestJSON), &actions); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("parse manifest part: %w", err))
		return
	}

	uploads := make([]syncsvc.Upload, 0, len(actions))
	for i, action := range actions {
		up := syncsvc.Upload{
			Path:   action.Path,
			Action: syncsvc.FileAction(action.Action),
		}
		if up.Action != syncsvc.FileDelete {
			// Content parts are keyed by manifest index, not by path: the
			// multipart reader reduces part filenames to their basename, so
			// a path-based key could never round-trip a nested path.
			fhs := form.File[partName(i)]
			if len(fhs) == 0 {
				api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest,
					fmt.Errorf("manifest lists %s but no content part was sent", action.Path))
				return
			}
			fh := fhs[0]
			if fh.Size > maxUploadBytes {
				api.AbortWithError(ctx, http.StatusRequestEntityTooLarge, api.CodeInvalidRequest,
					fmt.Errorf("%s exceeds the %d byte upload limit", action.Path, maxUploadBytes))
				return
			}
			content, err := readPart(fh)
			if err != nil {
				api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest,
					fmt.Errorf("read content part %s: %w", action.Path, err))
				return
			}
			up.Content = content
		}
		uploads = append(uploads, up)
	}

	res, err := h.svc.Commit(ctx.Request.Context(), &syncsvc.CommitRequest{
		BaseCommit: baseCommit,
		Uploads:    uploads,
	})
	if errors.Is(err, syncsvc.ErrBadBaseCommit) {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeSyncBadBase, err)
		return
	}
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeSyncFailed, err)
		return
	}

	results := make([]FileResult, 0, len(res.Results))
	for _, r := range res.Results {
		results = append(results, FileResult{
			Path:     r.Path,
			Outcome:  string(r.Outcome),
			Message:  r.Message,
			Conflict: r.Conflict,
		})
	}

	ctx.PureJSON(http.StatusOK, &CommitResponse{
		Results:       results,
		ToDownload:    res.ToDownload,
		NewBaseCommit: res.NewBaseCommit,
		FilesSynced:   res.FilesSynced,
	})
}

// partName is the multipart field carrying the content for the manifest
// entry at index i. Mirrored by the client SDK.
func partName(i int) string {
	return fmt.Sprintf("files[%d]", i)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	fd, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer fd.Close()
	return io.ReadAll(io.LimitReader(fd, maxUploadBytes+1))
}
