package gitstore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means a path does not exist in the tree of the given
	// commit. This is an expected condition, not a repository failure.
	ErrNotFound = errors.New("gitstore: path not found at commit")

	// ErrCommitNotFound means the referenced commit object is missing
	// from the repository. Unlike ErrNotFound this is an infrastructure
	// problem: the client referenced a base the repository should hold.
	ErrCommitNotFound = errors.New("gitstore: commit object not found")

	// ErrNoHead means the repository has no commits yet.
	ErrNoHead = errors.New("gitstore: repository has no commits")
)

// ProcessError reports a merge tool invocation that failed outside the
// plausible conflict-count range: start failure, signal termination,
// timeout, or an out-of-range exit status. It must never be interpreted
// as a conflict count.
type ProcessError struct {
	Op       string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gitstore: %s: %v (exit=%d, stderr=%q)", e.Op, e.Err, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("gitstore: %s: exit=%d, stderr=%q", e.Op, e.ExitCode, e.Stderr)
}

func (e *ProcessError) Unwrap() error { return e.Err }

// CommitError reports a failed commit of merged results. Callers must
// surface it as a degraded outcome, never fold it into success.
type CommitError struct {
	Message string
	Err     error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("gitstore: commit %q: %v", e.Message, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }
