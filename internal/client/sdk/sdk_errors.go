package sdk

import (
	"errors"
	"fmt"

	"github.com/imroc/req/v3"
)

var (
	ErrNoServerURL = errors.New("sdk: server url missing")
	ErrNoToken     = errors.New("sdk: auth token missing")
)

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeAccessDenied   = "E_ACCESS_DENIED"   // access denied
	CodeUnknownError   = "E_UNKNOWN_ERR"     // unknown error

	// Sync errors
	CodeSyncInvalidPath  = "E_SYNC_INVALID_PATH"  // the provided content path is invalid.
	CodeSyncBadBase      = "E_SYNC_BAD_BASE"      // the referenced base commit is unknown; re-run status.
	CodeSyncCommitFailed = "E_SYNC_COMMIT_FAILED" // the batch could not be committed.
	CodeSyncFailed       = "E_SYNC_FAILED"        // a file failed to sync; retry.

	// Content errors
	CodeContentNotFound = "E_CONTENT_NOT_FOUND" // the requested path does not exist at head.
)

// APIError is the server's error envelope.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: code=%s, message=%s", e.Code, e.Message)
}

// IsCode reports whether err carries the given API error code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// handleAPIError folds the transport error and the API error envelope
// into one error value.
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s %w", operation, requestErr)
	}

	if resp.IsErrorState() {
		if err, ok := resp.ErrorResult().(*APIError); ok {
			return fmt.Errorf("%s: %w", operation, err)
		}
		return fmt.Errorf("api error: %s %s", operation, resp.Status)
	}

	return nil
}
