package review

import (
	"context"
	"os"

	"go.uber.org/multierr"

	"github.com/kvit-s/fixsync/internal/apply"
	"github.com/kvit-s/fixsync/internal/checkpoint"
	"github.com/kvit-s/fixsync/internal/decisions"
	apperrors "github.com/kvit-s/fixsync/internal/errors"
	"github.com/kvit-s/fixsync/internal/issues"
	"github.com/kvit-s/fixsync/internal/rangesync"
	"github.com/kvit-s/fixsync/internal/session"
	"github.com/kvit-s/fixsync/internal/shift"
	"github.com/kvit-s/fixsync/internal/workspace"
)

// ApplyResult describes a completed apply.
type ApplyResult struct {
	SourcePath string
	PatchPath  string
	// Resolved lists the warning ids of the issues the patch fixed.
	Resolved []string
	Offsets  []int
	Shifts   shift.Table
	// Siblings are the pending patches whose hunk headers were re-anchored.
	Siblings []string
	// Warnings are failures after the source was written. The apply stands.
	Warnings []error
}

// Apply applies patchRef to its source and propagates the change: the fixed
// issues leave the store, the remaining issue ranges and the sibling patch
// headers are shifted, and the decision is logged. Every read and computation
// happens before the first write, so a failure up to the source write leaves
// nothing changed.
func (e *Engine) Apply(ctx context.Context, patchRef, reason string) (*ApplyResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	patchPath := e.resolvePatch(patchRef)
	patchText, p, err := e.loadPatch(patchPath)
	if err != nil {
		return nil, err
	}
	sourcePath, err := e.resolveSource(p)
	if err != nil {
		return nil, err
	}
	if s, ok := e.sessions.Get(sourcePath); ok && !issues.SamePatch(s.PatchPath, patchPath) {
		return nil, apperrors.SessionConflict(sourcePath, s.PatchPath)
	}

	snap, err := checkpoint.Capture(sourcePath, e.store.Path())
	if err != nil {
		return nil, err
	}
	res, err := apply.Apply(snap.SourceContent, p, e.opts)
	if err != nil {
		return nil, withPath(err, patchPath)
	}
	table := shift.Compute(p)

	next := e.store.Clone()
	resolved := next.RemoveIssuesForPatch(patchPath)
	rangesync.UpdateRanges(next, sourcePath, table, shift.Forward)

	plans, err := rangesync.PlanSiblingRewrites(e.siblingsOf(next, sourcePath, patchPath), table, shift.Forward)
	if err != nil {
		return nil, err
	}
	if err := e.checkWritable(sourcePath); err != nil {
		return nil, err
	}
	for _, pl := range plans {
		if pl.Changed {
			if err := e.checkWritable(pl.Path); err != nil {
				return nil, err
			}
		}
	}

	// Last chance to back out; from here on the operation runs to completion.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap.AppliedPatchPath = patchPath
	snap.AppliedPatchText = patchText
	snap.Shifts = table
	for _, pl := range plans {
		if pl.Changed {
			snap.RewrittenSiblings = append(snap.RewrittenSiblings, checkpoint.SiblingRewrite{
				Path:   pl.Path,
				Before: pl.Before,
				After:  pl.After,
			})
		}
	}
	if err := e.snapshots.Save(snap); err != nil {
		return nil, err
	}

	if err := workspace.WriteFileAtomic(workspace.Native(sourcePath), []byte(res.Text)); err != nil {
		_ = e.snapshots.Clear()
		return nil, apperrors.IoFailure("write source", sourcePath, err)
	}
	if err := e.saveStore(next); err != nil {
		rollback := workspace.WriteFileAtomic(workspace.Native(sourcePath), []byte(snap.SourceContent))
		_ = e.snapshots.Clear()
		return nil, multierr.Append(err, rollback)
	}
	e.store = next

	result := &ApplyResult{
		SourcePath: sourcePath,
		PatchPath:  patchPath,
		Resolved:   resolved,
		Offsets:    res.Offsets,
		Shifts:     table,
	}

	written, err := rangesync.Commit(plans)
	result.Siblings = written
	if err != nil {
		for _, w := range multierr.Errors(err) {
			e.log.SiblingRewriteFailed(w)
			result.Warnings = append(result.Warnings, w)
		}
		// Undo must only restore the headers that were actually moved.
		snap.RewrittenSiblings = keepWritten(snap.RewrittenSiblings, written)
		if err := e.snapshots.Save(snap); err != nil {
			result.Warnings = append(result.Warnings, err)
		}
	}

	if err := e.deleteRecords(resolved); err != nil {
		result.Warnings = append(result.Warnings, multierr.Errors(err)...)
	}
	if err := e.record(sourcePath, patchPath, decisions.Applied, reason); err != nil {
		result.Warnings = append(result.Warnings, err)
	}
	if _, ok := e.sessions.Get(sourcePath); ok {
		if _, err := e.sessions.Close(sourcePath, session.Applied); err != nil {
			result.Warnings = append(result.Warnings, err)
		}
	}

	e.log.PatchApplied(sourcePath, patchPath, resolved, res.Offsets, len(written))
	return result, nil
}

// DeclineResult describes a declined patch.
type DeclineResult struct {
	SourcePath string
	PatchPath  string
	// Removed lists the warning ids of issues left without any patch.
	Removed  []string
	Warnings []error
}

// Decline rejects patchRef: the patch leaves the store and the session
// closes. No source text changes.
func (e *Engine) Decline(ctx context.Context, patchRef, reason string) (*DeclineResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	patchPath := e.resolvePatch(patchRef)
	sourcePath, err := e.declineSource(patchPath)
	if err != nil {
		return nil, err
	}
	if s, ok := e.sessions.Get(sourcePath); ok && !issues.SamePatch(s.PatchPath, patchPath) {
		return nil, apperrors.SessionConflict(sourcePath, s.PatchPath)
	}

	result := &DeclineResult{SourcePath: sourcePath, PatchPath: patchPath}
	if _, err := e.store.Locate(patchPath); err == nil {
		next := e.store.Clone()
		result.Removed = next.RemovePatch(patchPath)
		if err := e.saveStore(next); err != nil {
			return nil, err
		}
		e.store = next
	}

	if err := e.deleteRecords(result.Removed); err != nil {
		result.Warnings = append(result.Warnings, multierr.Errors(err)...)
	}
	if _, ok := e.sessions.Get(sourcePath); ok {
		if _, err := e.sessions.Close(sourcePath, session.Declined); err != nil {
			result.Warnings = append(result.Warnings, err)
		}
	}
	if err := e.record(sourcePath, patchPath, decisions.Declined, reason); err != nil {
		result.Warnings = append(result.Warnings, err)
	}

	e.log.PatchDeclined(sourcePath, patchPath, reason)
	return result, nil
}

// declineSource names the source a declined patch targets. A patch file that
// is already gone can still be declined through its issue.
func (e *Engine) declineSource(patchPath string) (string, error) {
	_, p, err := e.loadPatch(patchPath)
	if err == nil {
		if src, err := e.resolveSource(p); err == nil {
			return src, nil
		}
		return workspace.NormalizePath(e.root(), p.SourceLabel), nil
	}
	if _, statErr := os.Stat(workspace.Native(patchPath)); statErr == nil {
		return "", err
	}
	is, lerr := e.store.Locate(patchPath)
	if lerr != nil {
		return "", err
	}
	return is.SourceFile, nil
}

func keepWritten(recorded []checkpoint.SiblingRewrite, written []string) []checkpoint.SiblingRewrite {
	done := make(map[string]bool, len(written))
	for _, path := range written {
		done[path] = true
	}
	kept := recorded[:0]
	for _, rec := range recorded {
		if done[rec.Path] {
			kept = append(kept, rec)
		}
	}
	return kept
}
