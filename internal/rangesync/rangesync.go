// Package rangesync propagates a patch's line shifts to everything else that
// addresses the same source file: issue ranges in the store and the hunk
// headers of the other pending patches.
package rangesync

import (
	"errors"
	"io/fs"
	"os"

	"go.uber.org/multierr"

	"github.com/kvit-s/fixsync/internal/diff"
	apperrors "github.com/kvit-s/fixsync/internal/errors"
	"github.com/kvit-s/fixsync/internal/issues"
	"github.com/kvit-s/fixsync/internal/shift"
	"github.com/kvit-s/fixsync/internal/workspace"
)

// UpdateRanges shifts the start and end lines of every issue of sourcePath
// whose line lies strictly after a table key. It reports whether any range
// changed, so callers persist only stores that did.
func UpdateRanges(store *issues.Store, sourcePath string, table shift.Table, dir shift.Direction) bool {
	if len(table) == 0 {
		return false
	}
	changed := false
	for _, is := range store.ForSource(sourcePath) {
		r := is.TextRange
		r.StartLine = table.ShiftAfter(r.StartLine, dir)
		r.EndLine = table.ShiftAfter(r.EndLine, dir)
		if r != is.TextRange {
			is.TextRange = r
			changed = true
		}
	}
	return changed
}

// Rewrite is a planned header-only rewrite of one sibling patch file.
type Rewrite struct {
	Path    string
	Before  string
	After   string
	Changed bool
}

// ReanchorPatch moves every hunk of p through the table: OldStart is shifted
// and NewStart moves by the same amount. Hunk bodies are untouched.
func ReanchorPatch(p *diff.Patch, table shift.Table, dir shift.Direction) *diff.Patch {
	return p.Reanchor(func(h diff.Hunk) (int, int) {
		moved := table.Shift(h.OldStart, dir)
		return moved, h.NewStart + (moved - h.OldStart)
	})
}

// PlanSiblingRewrites reads and re-anchors each sibling patch. It performs no
// writes. Missing sibling files are skipped; any other read failure or a
// sibling that no longer parses aborts the plan, so nothing is written when
// the apply cannot be completed consistently.
func PlanSiblingRewrites(siblings []string, table shift.Table, dir shift.Direction) ([]Rewrite, error) {
	plans := make([]Rewrite, 0, len(siblings))
	for _, path := range siblings {
		data, err := os.ReadFile(workspace.Native(path))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, apperrors.IoFailure("read sibling patch", path, err)
		}

		before := string(data)
		p, err := parseSibling(before, path)
		if err != nil {
			return nil, err
		}

		after := diff.Render(ReanchorPatch(p, table, dir))
		plans = append(plans, Rewrite{
			Path:    path,
			Before:  before,
			After:   after,
			Changed: after != before,
		})
	}
	return plans, nil
}

// PlanRestore plans the reversal of recorded rewrites. A file still holding
// the recorded After text gets its Before text back verbatim. A file edited
// since is re-anchored through the table in dir instead. Missing files are skipped and a file that no
// longer parses aborts the plan.
func PlanRestore(recorded []Rewrite, table shift.Table, dir shift.Direction) ([]Rewrite, error) {
	plans := make([]Rewrite, 0, len(recorded))
	for _, rec := range recorded {
		data, err := os.ReadFile(workspace.Native(rec.Path))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, apperrors.IoFailure("read sibling patch", rec.Path, err)
		}

		current := string(data)
		if current == rec.After {
			plans = append(plans, Rewrite{
				Path:    rec.Path,
				Before:  current,
				After:   rec.Before,
				Changed: current != rec.Before,
			})
			continue
		}

		p, err := parseSibling(current, rec.Path)
		if err != nil {
			return nil, err
		}
		after := diff.Render(ReanchorPatch(p, table, dir))
		plans = append(plans, Rewrite{
			Path:    rec.Path,
			Before:  current,
			After:   after,
			Changed: after != current,
		})
	}
	return plans, nil
}

func parseSibling(text, path string) (*diff.Patch, error) {
	p, err := diff.Parse(text)
	if err != nil {
		var coded *apperrors.CodedError
		if errors.As(err, &coded) {
			return nil, coded.WithPath(path)
		}
		return nil, err
	}
	return p, nil
}

// Commit writes every changed plan. Failures do not stop the remaining
// writes; they are returned combined and name each file. The second result
// lists the paths actually rewritten.
func Commit(plans []Rewrite) ([]string, error) {
	var (
		written []string
		errs    error
	)
	for _, pl := range plans {
		if !pl.Changed {
			continue
		}
		if err := workspace.WriteFileAtomic(workspace.Native(pl.Path), []byte(pl.After)); err != nil {
			errs = multierr.Append(errs, apperrors.IoFailure("rewrite sibling patch", pl.Path, err))
			continue
		}
		written = append(written, pl.Path)
	}
	return written, errs
}
