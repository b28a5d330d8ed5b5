package review

import (
	"context"
	"errors"
	"os"

	"github.com/kvit-s/fixsync/internal/apply"
	"github.com/kvit-s/fixsync/internal/diff"
	apperrors "github.com/kvit-s/fixsync/internal/errors"
	"github.com/kvit-s/fixsync/internal/issues"
	"github.com/kvit-s/fixsync/internal/session"
	"github.com/kvit-s/fixsync/internal/workspace"
)

// Preview is what a reviewer sees before deciding on a patch.
type Preview struct {
	Session *session.Session
	// Revealed is set when the source already had an open session, which was
	// reused instead of opening a second one.
	Revealed bool

	SourcePath string
	PatchPath  string

	// Issue is the issue the patch fixes; nil when no issue references it.
	Issue *issues.Issue
	// Diff is the change the patch will actually make, which can differ from
	// the patch text under whitespace-tolerant matching.
	Diff    string
	Stats   diff.Stats
	Offsets []int
}

// Open dry-runs patchRef against its source and opens the source's review
// session. When the source already has one it is revealed unchanged, and
// the preview is of the patch that session holds. Nothing is written except
// the session registry.
func (e *Engine) Open(ctx context.Context, patchRef string) (*Preview, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	pv, err := e.preview(e.resolvePatch(patchRef))
	if err != nil {
		return nil, err
	}

	s, revealed, err := e.sessions.Open(pv.SourcePath, pv.PatchPath)
	if err != nil {
		return nil, err
	}
	// A revealed session keeps its patch; switching is Navigate's job.
	if revealed && !issues.SamePatch(s.PatchPath, pv.PatchPath) {
		if pv, err = e.preview(s.PatchPath); err != nil {
			return nil, err
		}
	}
	pv.Session = s
	pv.Revealed = revealed
	return pv, nil
}

// preview parses and dry-runs a patch without touching any state.
func (e *Engine) preview(patchPath string) (*Preview, error) {
	text, p, err := e.loadPatch(patchPath)
	if err != nil {
		return nil, err
	}
	sourcePath, err := e.resolveSource(p)
	if err != nil {
		return nil, err
	}
	src, err := os.ReadFile(workspace.Native(sourcePath))
	if err != nil {
		return nil, apperrors.SourceNotFound(sourcePath, err)
	}

	res, err := apply.Apply(string(src), p, e.opts)
	if err != nil {
		return nil, withPath(err, patchPath)
	}

	effective, err := diff.UnifiedDiff(string(src), res.Text, workspace.Rel(e.root(), sourcePath))
	if err != nil {
		return nil, err
	}
	stats, err := diff.Stat(text)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeMalformedPatch, "patch statistics", err).WithPath(patchPath)
	}

	pv := &Preview{
		SourcePath: sourcePath,
		PatchPath:  patchPath,
		Diff:       effective,
		Stats:      stats,
		Offsets:    res.Offsets,
	}
	if is, err := e.store.Locate(patchPath); err == nil {
		c := *is
		c.Patches = append([]issues.Patch(nil), is.Patches...)
		pv.Issue = &c
	}
	return pv, nil
}

// Navigate moves the open session of sourceRef step fixes forward (or
// backward, for a negative step) through the alternative fixes of the issue
// owning the session's patch, best score first, wrapping around at either
// end.
func (e *Engine) Navigate(ctx context.Context, sourceRef string, step int) (*Preview, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	sourcePath := workspace.NormalizePath(e.root(), sourceRef)
	s, ok := e.sessions.Get(sourcePath)
	if !ok {
		return nil, apperrors.New(apperrors.CodeSessionConflict, "no open session").WithPath(sourcePath)
	}

	fixes, err := e.store.FixesFor(s.PatchPath)
	if err != nil {
		return nil, err
	}
	current := 0
	for i, f := range fixes {
		if issues.SamePatch(f.Path, s.PatchPath) {
			current = i
			break
		}
	}
	next := ((current+step)%len(fixes) + len(fixes)) % len(fixes)

	pv, err := e.preview(e.resolvePatch(fixes[next].Path))
	if err != nil {
		return nil, err
	}
	if pv.Session, err = e.sessions.Switch(sourcePath, pv.PatchPath); err != nil {
		return nil, err
	}
	pv.Revealed = true
	return pv, nil
}

// Locate returns the issue owning patchRef with its current range.
func (e *Engine) Locate(patchRef string) (*issues.Issue, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Locate(e.resolvePatch(patchRef))
}

// Pending returns the unresolved issues of sourceRef, or of every source
// when sourceRef is empty.
func (e *Engine) Pending(sourceRef string) []*issues.Issue {
	e.mu.Lock()
	defer e.mu.Unlock()

	store := e.store.Clone()
	if sourceRef == "" {
		return store.All()
	}
	return store.ForSource(sourceRef)
}

func withPath(err error, path string) error {
	var coded *apperrors.CodedError
	if errors.As(err, &coded) && coded.Path == "" {
		return coded.WithPath(path)
	}
	return err
}
