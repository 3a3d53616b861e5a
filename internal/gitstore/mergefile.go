package gitstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// maxConflictExit is the largest exit status `git merge-file` uses to
// report a conflict count. git caps the count at 127; 128 and above mean
// the process died (fatal error or signal), and must never be read as
// "128 conflicts".
const maxConflictExit = 127

// MergeFile runs the external three-way merge over current/base/other and
// returns the merged content plus the number of conflicting hunks.
// Overlapping hunks carry inline markers; disjoint hunks merge cleanly
// and are always retained. Any failure of the tool itself comes back as a
// *ProcessError.
func (s *Store) MergeFile(ctx context.Context, current, base, other []byte) ([]byte, int, error) {
	dir, err := os.MkdirTemp("", "markpress-merge-*")
	if err != nil {
		return nil, 0, &ProcessError{Op: "merge-file", Err: fmt.Errorf("create temp dir: %w", err)}
	}
	defer os.RemoveAll(dir)

	currentFile := filepath.Join(dir, "current")
	baseFile := filepath.Join(dir, "base")
	otherFile := filepath.Join(dir, "other")
	for _, f := range []struct {
		path string
		data []byte
	}{
		{currentFile, current},
		{baseFile, base},
		{otherFile, other},
	} {
		if err := os.WriteFile(f.path, f.data, 0o600); err != nil {
			return nil, 0, &ProcessError{Op: "merge-file", Err: fmt.Errorf("write temp input: %w", err)}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.MergeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.config.GitBin, "merge-file", "-p",
		"-L", "server", "-L", "base", "-L", "client",
		currentFile, baseFile, otherFile)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		// a timeout is an infrastructure failure, never a conflict
		return nil, 0, &ProcessError{Op: "merge-file", ExitCode: -1, Stderr: stderr.String(), Err: fmt.Errorf("merge tool timed out: %w", ctxErr)}
	}

	code, err := mergeExitCode(runErr)
	if err != nil {
		return nil, 0, &ProcessError{Op: "merge-file", ExitCode: code, Stderr: stderr.String(), Err: err}
	}

	conflicts, err := classifyMergeExit(code)
	if err != nil {
		return nil, 0, &ProcessError{Op: "merge-file", ExitCode: code, Stderr: stderr.String(), Err: err}
	}
	return stdout.Bytes(), conflicts, nil
}

// mergeExitCode extracts the process exit status. A start failure or a
// signal-terminated process has no meaningful status and is an error in
// itself.
func mergeExitCode(runErr error) (int, error) {
	if runErr == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if !errors.As(runErr, &exitErr) {
		return -1, fmt.Errorf("merge tool failed to run: %w", runErr)
	}
	code := exitErr.ExitCode()
	if code < 0 {
		return code, fmt.Errorf("merge tool terminated by signal: %w", runErr)
	}
	return code, nil
}

// classifyMergeExit maps a merge-file exit status onto the three-way
// classification: clean, N conflicts, or infrastructure failure.
func classifyMergeExit(code int) (int, error) {
	switch {
	case code == 0:
		return 0, nil
	case code > 0 && code <= maxConflictExit:
		return code, nil
	default:
		return 0, fmt.Errorf("exit status %d outside conflict-count range", code)
	}
}
