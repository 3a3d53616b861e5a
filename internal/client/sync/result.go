package sync

import (
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/markpress/markpress/internal/merge"
)

// FileStatus is the closed set of per-file results of a sync round.
type FileStatus string

const (
	StatusUploaded      FileStatus = "uploaded"
	StatusDownloaded    FileStatus = "downloaded"
	StatusDeletedLocal  FileStatus = "deleted locally"
	StatusDeletedRemote FileStatus = "deleted on server"
	StatusConflict      FileStatus = "conflict"
	StatusSkipped       FileStatus = "skipped"
	StatusError         FileStatus = "error"
)

type FileReport struct {
	Path     string
	Status   FileStatus
	Message  string
	Size     int64
	Conflict *merge.Detail
}

// Result summarizes one sync round.
type Result struct {
	Files      []FileReport
	BaseCommit string
}

func (r *Result) add(fr FileReport) {
	r.Files = append(r.Files, fr)
}

func (r *Result) count(status FileStatus) int {
	n := 0
	for _, fr := range r.Files {
		if fr.Status == status {
			n++
		}
	}
	return n
}

func (r *Result) Conflicts() int { return r.count(StatusConflict) }
func (r *Result) Errors() int    { return r.count(StatusError) }

// ExitCode maps the round to a process exit code: 0 when everything
// synced, 1 when some files need attention (conflicts, skips, errors).
func (r *Result) ExitCode() int {
	if r.Conflicts() > 0 || r.Errors() > 0 || r.count(StatusSkipped) > 0 {
		return 1
	}
	return 0
}

var (
	colorUpload   = color.New(color.FgGreen)
	colorDownload = color.New(color.FgCyan)
	colorDelete   = color.New(color.FgYellow)
	colorConflict = color.New(color.FgRed, color.Bold)
	colorError    = color.New(color.FgRed)
	colorMuted    = color.New(color.Faint)
)

// Print writes a human-readable per-file summary.
func (r *Result) Print(w io.Writer) {
	if len(r.Files) == 0 {
		colorMuted.Fprintln(w, "already in sync")
		return
	}

	files := make([]FileReport, len(r.Files))
	copy(files, r.Files)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	for _, fr := range files {
		c, sign := statusStyle(fr.Status)
		line := fmt.Sprintf("%s %-18s %s", sign, fr.Status, fr.Path)
		if fr.Size > 0 {
			line += colorMuted.Sprintf(" (%s)", humanize.Bytes(uint64(fr.Size)))
		}
		c.Fprintln(w, line)

		if fr.Message != "" {
			colorMuted.Fprintf(w, "    %s\n", fr.Message)
		}
		if fr.Conflict != nil {
			for _, field := range fr.Conflict.Fields {
				colorMuted.Fprintf(w, "    field %q: server=%q client=%q\n", field.Key, field.Server, field.Client)
			}
			if fr.Conflict.BodyConflicts > 0 {
				colorMuted.Fprintf(w, "    %d conflicting body hunk(s)\n", fr.Conflict.BodyConflicts)
			}
		}
	}

	fmt.Fprintf(w, "\n%d uploaded, %d downloaded, %d deleted, %d conflict(s), %d error(s)\n",
		r.count(StatusUploaded),
		r.count(StatusDownloaded),
		r.count(StatusDeletedLocal)+r.count(StatusDeletedRemote),
		r.Conflicts(),
		r.Errors()+r.count(StatusSkipped))
}

func statusStyle(status FileStatus) (*color.Color, string) {
	switch status {
	case StatusUploaded:
		return colorUpload, "↑"
	case StatusDownloaded:
		return colorDownload, "↓"
	case StatusDeletedLocal, StatusDeletedRemote:
		return colorDelete, "✕"
	case StatusConflict:
		return colorConflict, "!"
	case StatusError, StatusSkipped:
		return colorError, "✗"
	default:
		return colorMuted, " "
	}
}
