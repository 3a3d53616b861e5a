// Package api holds the error envelope shared by all HTTP handlers.
package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeAccessDenied   = "E_ACCESS_DENIED"   // access denied

	// Sync errors
	CodeSyncInvalidPath  = "E_SYNC_INVALID_PATH"  // the provided content path is invalid or escapes the tracked tree.
	CodeSyncLocked       = "E_SYNC_LOCKED"        // another commit is in flight.
	CodeSyncBadBase      = "E_SYNC_BAD_BASE"      // the referenced base commit is unknown to the repository.
	CodeSyncCommitFailed = "E_SYNC_COMMIT_FAILED" // the batch could not be committed to version control.
	CodeSyncFailed       = "E_SYNC_FAILED"        // a file failed to sync; the client should retry.

	// Content errors
	CodeContentNotFound = "E_CONTENT_NOT_FOUND" // the requested path does not exist at HEAD.
)

type Error struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("api error: code=%s, message=%s", e.Code, e.Message)
}

func AbortWithError(ctx *gin.Context, status int, code string, err error) {
	ctx.Abort()
	ctx.Error(err)
	ctx.PureJSON(status, Error{
		Code:    code,
		Message: err.Error(),
	})
}
