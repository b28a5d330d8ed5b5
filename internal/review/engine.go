// Package review is the orchestrator: it drives a patch from preview through
// apply, decline or undo, keeping the source, the issue store, the sibling
// patches and the decision log consistent.
package review

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/kvit-s/fixsync/internal/apply"
	"github.com/kvit-s/fixsync/internal/checkpoint"
	"github.com/kvit-s/fixsync/internal/config"
	"github.com/kvit-s/fixsync/internal/decisions"
	"github.com/kvit-s/fixsync/internal/diff"
	apperrors "github.com/kvit-s/fixsync/internal/errors"
	"github.com/kvit-s/fixsync/internal/issues"
	"github.com/kvit-s/fixsync/internal/logging"
	"github.com/kvit-s/fixsync/internal/session"
	"github.com/kvit-s/fixsync/internal/workspace"
)

// Engine serializes every review operation for one project. All methods are
// safe for concurrent use; they run one at a time.
type Engine struct {
	mu sync.Mutex

	cfg       *config.Config
	opts      apply.Options
	store     *issues.Store
	sessions  *session.Registry
	snapshots *checkpoint.Manager
	decisions *decisions.Log
	audit     *decisions.Audit
	log       *logging.Logger

	// saveStore persists a store; replaced in tests to simulate write failures.
	saveStore func(*issues.Store) error
}

// New opens the engine's persistent state as described by cfg. log may be nil.
func New(cfg *config.Config, log *logging.Logger) (*Engine, error) {
	if log == nil {
		log = logging.Nop()
	}

	store, err := issues.Load(cfg.Issues.Path)
	if err != nil {
		return nil, err
	}
	sessions, err := session.NewRegistry(cfg.SessionsPath())
	if err != nil {
		return nil, err
	}
	snapshots, err := checkpoint.NewManager(cfg.State.Dir)
	if err != nil {
		return nil, err
	}

	var audit *decisions.Audit
	if cfg.Decisions.AuditDB != "" {
		audit, err = decisions.OpenAudit(cfg.Decisions.AuditDB)
		if err != nil {
			return nil, err
		}
	}

	return &Engine{
		cfg:       cfg,
		opts:      cfg.ApplyOptions(),
		store:     store,
		sessions:  sessions,
		snapshots: snapshots,
		decisions: decisions.NewLog(cfg.Decisions.LogPath, audit),
		audit:     audit,
		log:       log,
		saveStore: (*issues.Store).Save,
	}, nil
}

// Close releases the audit database, if one is open.
func (e *Engine) Close() error {
	if e.audit != nil {
		return e.audit.Close()
	}
	return nil
}

// Store returns a copy of the current issue store.
func (e *Engine) Store() *issues.Store {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Clone()
}

// Sessions returns the open review sessions.
func (e *Engine) Sessions() []*session.Session {
	return e.sessions.List()
}

// UndoAvailable reports whether a snapshot is waiting to be restored.
func (e *Engine) UndoAvailable() bool {
	return e.snapshots.Available()
}

// AuditTrail returns the newest audit rows, or nil when no audit database is
// configured.
func (e *Engine) AuditTrail(limit int) ([]decisions.Entry, error) {
	if e.audit == nil {
		return nil, nil
	}
	return e.audit.List(limit)
}

func (e *Engine) root() string {
	return workspace.NormalizePath("", e.cfg.Project.Root)
}

// resolvePatch turns a patch reference (from the command line or the issue
// store) into a normalized path. Relative references resolve against the
// patches directory first and the project root second.
func (e *Engine) resolvePatch(ref string) string {
	patchesDir := workspace.NormalizePath("", e.cfg.Patches.Dir)
	p := workspace.NormalizePath(patchesDir, ref)
	if workspace.FileExists(workspace.Native(p)) {
		return p
	}
	if alt := workspace.NormalizePath(e.root(), ref); workspace.FileExists(workspace.Native(alt)) {
		return alt
	}
	return p
}

// loadPatch reads and parses a patch file.
func (e *Engine) loadPatch(patchPath string) (string, *diff.Patch, error) {
	data, err := os.ReadFile(workspace.Native(patchPath))
	if err != nil {
		return "", nil, apperrors.IoFailure("read patch", patchPath, err)
	}
	p, err := diff.Parse(string(data))
	if err != nil {
		return "", nil, withPath(err, patchPath)
	}
	return string(data), p, nil
}

// resolveSource finds the file a patch targets from its "---" label. Git
// style "a/" prefixes are tried with and without the prefix.
func (e *Engine) resolveSource(p *diff.Patch) (string, error) {
	label := p.SourceLabel
	if label == "" || label == "/dev/null" {
		label = p.DestLabel
	}
	candidates := []string{label}
	if rest, ok := strings.CutPrefix(label, "a/"); ok {
		candidates = append(candidates, rest)
	}
	for _, c := range candidates {
		path := workspace.NormalizePath(e.root(), c)
		if workspace.FileExists(workspace.Native(path)) {
			return path, nil
		}
	}
	return "", apperrors.SourceNotFound(workspace.NormalizePath(e.root(), label), fs.ErrNotExist)
}

// checkWritable refuses writes the project configuration does not permit.
func (e *Engine) checkWritable(path string) error {
	result, err := e.cfg.CheckPathPermission(workspace.Native(path), config.AccessWrite)
	if result != config.PermissionGranted {
		return apperrors.IoFailure("write", path, err)
	}
	return nil
}

// siblingsOf lists the pending patches of sourcePath in store, excluding
// patchPath, as resolved file paths.
func (e *Engine) siblingsOf(store *issues.Store, sourcePath, patchPath string) []string {
	var out []string
	for _, ref := range store.PatchesForSource(sourcePath) {
		if issues.SamePatch(ref, patchPath) {
			continue
		}
		out = append(out, e.resolvePatch(ref))
	}
	return out
}

// deleteRecords removes the per-issue <warning id>.json records of resolved
// issues. A missing record is not an error.
func (e *Engine) deleteRecords(ids []string) error {
	if e.cfg.Issues.RecordsDir == "" {
		return nil
	}
	var errs error
	for _, id := range ids {
		path := filepath.Join(e.cfg.Issues.RecordsDir, id+".json")
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = multierr.Append(errs, apperrors.IoFailure("delete issue record", path, err))
		}
	}
	return errs
}

// record writes a decision line with project-relative paths.
func (e *Engine) record(sourcePath, patchPath, decision, reason string) error {
	_, err := e.decisions.Record(workspace.Rel(e.root(), sourcePath), workspace.Rel(e.root(), patchPath), decision, reason)
	if err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}
