// Package checkpoint keeps the single-slot undo snapshot taken before a patch
// is applied.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	apperrors "github.com/kvit-s/fixsync/internal/errors"
	"github.com/kvit-s/fixsync/internal/shift"
	"github.com/kvit-s/fixsync/internal/workspace"
)

const snapshotFileName = "snapshot.json"

// Snapshot is the verbatim pre-apply state of a source file and the issue
// store, plus what undo needs to reverse the shift propagation exactly.
type Snapshot struct {
	SourcePath    string `json:"source_path"`
	SourceContent string `json:"source_content"`
	IssuesPath    string `json:"issues_path"`
	IssuesContent string `json:"issues_content"`
	// IssuesMissing records that the issue store did not exist yet.
	IssuesMissing bool `json:"issues_missing,omitempty"`

	AppliedPatchPath string      `json:"applied_patch_path"`
	AppliedPatchText string      `json:"applied_patch_text"`
	Shifts           shift.Table `json:"shifts"`
	// RewrittenSiblings are the sibling patches whose headers were shifted
	// forward, with their text before and after the rewrite.
	RewrittenSiblings []SiblingRewrite `json:"rewritten_siblings,omitempty"`

	CapturedAt time.Time `json:"captured_at"`
}

// SiblingRewrite is one sibling patch header rewrite performed by an apply.
// Undo restores Before verbatim while the file still holds After.
type SiblingRewrite struct {
	Path   string `json:"path"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// Manager owns the snapshot slot under a state directory.
type Manager struct {
	mu       sync.RWMutex
	stateDir string
}

// NewManager returns a manager keeping its slot in stateDir.
func NewManager(stateDir string) (*Manager, error) {
	if stateDir == "" {
		return nil, fmt.Errorf("state directory cannot be empty")
	}
	abs, err := filepath.Abs(stateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve state directory: %w", err)
	}
	return &Manager{stateDir: abs}, nil
}

func (m *Manager) slotPath() string {
	return filepath.Join(m.stateDir, snapshotFileName)
}

// Capture reads the current source and issue store contents verbatim. It
// does not touch the slot; call Save once the apply is ready to write.
func Capture(sourcePath, issuesPath string) (*Snapshot, error) {
	src, err := os.ReadFile(workspace.Native(sourcePath))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.SourceNotFound(sourcePath, err)
	}
	if err != nil {
		return nil, apperrors.IoFailure("read source", sourcePath, err)
	}

	snap := &Snapshot{
		SourcePath:    sourcePath,
		SourceContent: string(src),
		IssuesPath:    issuesPath,
		CapturedAt:    time.Now(),
	}

	data, err := os.ReadFile(issuesPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		snap.IssuesMissing = true
	case err != nil:
		return nil, apperrors.IoFailure("read issues", issuesPath, err)
	default:
		snap.IssuesContent = string(data)
	}
	return snap, nil
}

// Save stores snap in the slot, replacing any previous snapshot.
func (m *Manager) Save(snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := workspace.WriteFileAtomic(m.slotPath(), data); err != nil {
		return apperrors.IoFailure("write snapshot", m.slotPath(), err)
	}
	return nil
}

// Peek returns the stored snapshot without clearing it.
func (m *Manager) Peek() (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.readLocked()
}

// Available reports whether an undo is possible.
func (m *Manager) Available() bool {
	_, err := m.Peek()
	return err == nil
}

// Restore returns the stored snapshot and clears the slot. With an empty
// slot it fails with NoSnapshotAvailable, so a second consecutive undo is
// rejected.
func (m *Manager) Restore() (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, err := m.readLocked()
	if err != nil {
		return nil, err
	}
	if err := os.Remove(m.slotPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.IoFailure("clear snapshot", m.slotPath(), err)
	}
	return snap, nil
}

// Clear discards the stored snapshot, if any.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := os.Remove(m.slotPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperrors.IoFailure("clear snapshot", m.slotPath(), err)
	}
	return nil
}

func (m *Manager) readLocked() (*Snapshot, error) {
	data, err := os.ReadFile(m.slotPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NoSnapshotAvailable()
	}
	if err != nil {
		return nil, apperrors.IoFailure("read snapshot", m.slotPath(), err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIoFailure, "parse snapshot", err).WithPath(m.slotPath())
	}
	return &snap, nil
}

// WriteBack restores the captured source and issue store byte-for-byte. An
// issue store that did not exist at capture time is removed.
func (s *Snapshot) WriteBack() error {
	if err := workspace.WriteFileAtomic(workspace.Native(s.SourcePath), []byte(s.SourceContent)); err != nil {
		return apperrors.IoFailure("restore source", s.SourcePath, err)
	}
	if s.IssuesMissing {
		if err := os.Remove(s.IssuesPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return apperrors.IoFailure("restore issues", s.IssuesPath, err)
		}
		return nil
	}
	if err := workspace.WriteFileAtomic(s.IssuesPath, []byte(s.IssuesContent)); err != nil {
		return apperrors.IoFailure("restore issues", s.IssuesPath, err)
	}
	return nil
}
