package review

import (
	"context"

	"go.uber.org/multierr"

	"github.com/kvit-s/fixsync/internal/decisions"
	"github.com/kvit-s/fixsync/internal/issues"
	"github.com/kvit-s/fixsync/internal/rangesync"
	"github.com/kvit-s/fixsync/internal/session"
	"github.com/kvit-s/fixsync/internal/shift"
)

// UndoResult describes a reverted apply.
type UndoResult struct {
	SourcePath string
	PatchPath  string
	Session    *session.Session
	// Siblings are the patches whose headers were shifted back.
	Siblings []string
	Warnings []error
}

// Undo reverts the last apply. The source and the issue store are restored
// byte-for-byte from the snapshot; the sibling patches re-anchored at apply
// time get their recorded text back, or are shifted back with the stored
// table when edited since. The patch's session is
// reopened as Previewed. A second undo fails with NoSnapshotAvailable.
func (e *Engine) Undo(ctx context.Context, reason string) (*UndoResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := e.snapshots.Restore()
	if err != nil {
		return nil, err
	}

	// Siblings are planned before anything is written back.
	recorded := make([]rangesync.Rewrite, 0, len(snap.RewrittenSiblings))
	for _, rw := range snap.RewrittenSiblings {
		recorded = append(recorded, rangesync.Rewrite{Path: rw.Path, Before: rw.Before, After: rw.After})
	}
	plans, err := rangesync.PlanRestore(recorded, snap.Shifts, shift.Inverse)
	if err != nil {
		return nil, multierr.Append(err, e.snapshots.Save(snap))
	}

	if err := snap.WriteBack(); err != nil {
		return nil, multierr.Append(err, e.snapshots.Save(snap))
	}
	store, err := issues.Load(snap.IssuesPath)
	if err != nil {
		return nil, err
	}
	e.store = store

	result := &UndoResult{SourcePath: snap.SourcePath, PatchPath: snap.AppliedPatchPath}

	written, err := rangesync.Commit(plans)
	result.Siblings = written
	for _, w := range multierr.Errors(err) {
		e.log.SiblingRewriteFailed(w)
		result.Warnings = append(result.Warnings, w)
	}

	if result.Session, err = e.sessions.Reopen(snap.SourcePath, snap.AppliedPatchPath); err != nil {
		result.Warnings = append(result.Warnings, err)
	}
	if err := e.record(snap.SourcePath, snap.AppliedPatchPath, decisions.UndoRequested, reason); err != nil {
		result.Warnings = append(result.Warnings, err)
	}

	e.log.UndoPerformed(snap.SourcePath, snap.AppliedPatchPath, len(written))
	return result, nil
}
