package merge

import (
	"errors"
	"fmt"
)

// FieldConflict is a front-matter key that both sides changed to different
// values since base. Both candidates are always preserved.
type FieldConflict struct {
	Key    string `json:"key"`
	Base   string `json:"base,omitempty"`
	Server string `json:"server"`
	Client string `json:"client"`
}

// Detail describes what conflicted within a file.
type Detail struct {
	Fields        []FieldConflict `json:"fields,omitempty"`
	BodyConflicts int             `json:"bodyConflicts,omitempty"`
	Binary        bool            `json:"binary,omitempty"`
	Message       string          `json:"message,omitempty"`
}

// Result is the outcome of merging one file. When Conflicted is true the
// merged content still carries every cleanly merged hunk; only the
// overlapping regions hold conflict markers, and Detail says where.
type Result struct {
	Content    []byte
	Conflicted bool
	Detail     *Detail
}

// ValidationError marks input the engine refuses to merge, such as
// malformed front matter. It rejects a single file, never the batch.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("validation: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// InfrastructureError marks a failure of the machinery under the merge
// (tool invocation, repository access). It is recoverable and must never
// be read as "N conflicts".
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("infrastructure: %s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a per-file validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsInfrastructure reports whether err is an infrastructure failure.
func IsInfrastructure(err error) bool {
	var ie *InfrastructureError
	return errors.As(err, &ie)
}
