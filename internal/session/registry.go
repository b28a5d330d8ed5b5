// Package session tracks patch review sessions: at most one open session per
// source file, moving through Proposed -> Previewed -> Applied | Declined.
package session

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/kvit-s/fixsync/internal/errors"
	"github.com/kvit-s/fixsync/internal/workspace"
)

// State is a session's lifecycle position.
type State string

const (
	Proposed  State = "proposed"
	Previewed State = "previewed"
	Applied   State = "applied"
	Declined  State = "declined"
)

// Terminal reports whether no further transition is allowed except Undo.
func (s State) Terminal() bool {
	return s == Applied || s == Declined
}

// CanTransition reports whether from -> to is a legal move. Applied ->
// Previewed is the undo transition.
func CanTransition(from, to State) bool {
	switch from {
	case Proposed:
		return to == Previewed
	case Previewed:
		return to == Applied || to == Declined || to == Previewed
	case Applied:
		return to == Previewed
	}
	return false
}

// Session is the review of one patch against one source file.
type Session struct {
	ID         string    `json:"id"`
	SourcePath string    `json:"source"`
	PatchPath  string    `json:"patch"`
	State      State     `json:"state"`
	OpenedAt   time.Time `json:"opened_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Registry owns the open sessions, keyed by source path. When created with a
// file path it persists the open set as JSON lines so consecutive CLI runs
// see the same sessions.
type Registry struct {
	mu   sync.Mutex
	path string
	open map[string]*Session
	now  func() time.Time
}

// NewRegistry loads the registry persisted at path. An empty path gives an
// in-memory registry.
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{path: path, open: make(map[string]*Session), now: time.Now}
	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, apperrors.IoFailure("read sessions", path, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		var s Session
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeIoFailure, "parse session", err).WithPath(path)
		}
		r.open[s.SourcePath] = &s
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.IoFailure("read sessions", path, err)
	}
	return r, nil
}

// Open starts a Previewed session for patchPath on sourcePath. If the source
// already has an open session that session is returned unchanged with
// revealed set; a second session is never created.
func (r *Registry) Open(sourcePath, patchPath string) (s *Session, revealed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.open[sourcePath]; ok {
		return existing.copy(), true, nil
	}

	now := r.now()
	s = &Session{
		ID:         uuid.NewString(),
		SourcePath: sourcePath,
		PatchPath:  patchPath,
		State:      Previewed,
		OpenedAt:   now,
		UpdatedAt:  now,
	}
	r.open[sourcePath] = s
	if err := r.saveLocked(); err != nil {
		delete(r.open, sourcePath)
		return nil, false, err
	}
	return s.copy(), false, nil
}

// Get returns the open session for sourcePath.
func (r *Registry) Get(sourcePath string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.open[sourcePath]
	if !ok {
		return nil, false
	}
	return s.copy(), true
}

// Switch points the open session of sourcePath at another patch, keeping it
// Previewed. Used to step through alternative fixes.
func (r *Registry) Switch(sourcePath, patchPath string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.open[sourcePath]
	if !ok {
		return nil, apperrors.New(apperrors.CodeSessionConflict, "no open session").WithPath(sourcePath)
	}
	prev := *s
	s.PatchPath = patchPath
	s.State = Previewed
	s.UpdatedAt = r.now()
	if err := r.saveLocked(); err != nil {
		*s = prev
		return nil, err
	}
	return s.copy(), nil
}

// Close moves the open session of sourcePath to a terminal state and removes
// it from the registry. The closed session is returned.
func (r *Registry) Close(sourcePath string, final State) (*Session, error) {
	if !final.Terminal() {
		return nil, fmt.Errorf("close session: %q is not a terminal state", final)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.open[sourcePath]
	if !ok {
		return nil, apperrors.New(apperrors.CodeSessionConflict, "no open session").WithPath(sourcePath)
	}
	if !CanTransition(s.State, final) {
		return nil, fmt.Errorf("close session: cannot move from %s to %s", s.State, final)
	}

	delete(r.open, sourcePath)
	if err := r.saveLocked(); err != nil {
		r.open[sourcePath] = s
		return nil, err
	}
	closed := s.copy()
	closed.State = final
	closed.UpdatedAt = r.now()
	return closed, nil
}

// Reopen restores a session that was closed as Applied back to Previewed;
// the undo transition. Any session open for the source is replaced.
func (r *Registry) Reopen(sourcePath, patchPath string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	s := &Session{
		ID:         uuid.NewString(),
		SourcePath: sourcePath,
		PatchPath:  patchPath,
		State:      Previewed,
		OpenedAt:   now,
		UpdatedAt:  now,
	}
	prev, hadPrev := r.open[sourcePath]
	r.open[sourcePath] = s
	if err := r.saveLocked(); err != nil {
		if hadPrev {
			r.open[sourcePath] = prev
		} else {
			delete(r.open, sourcePath)
		}
		return nil, err
	}
	return s.copy(), nil
}

// List returns the open sessions ordered by source path.
func (r *Registry) List() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.open))
	for _, s := range r.open {
		out = append(out, s.copy())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourcePath < out[j].SourcePath })
	return out
}

func (r *Registry) saveLocked() error {
	if r.path == "" {
		return nil
	}
	sources := make([]string, 0, len(r.open))
	for src := range r.open {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	var buf bytes.Buffer
	for _, src := range sources {
		data, err := json.Marshal(r.open[src])
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	if err := workspace.WriteFileAtomic(r.path, buf.Bytes()); err != nil {
		return apperrors.IoFailure("write sessions", r.path, err)
	}
	return nil
}

func (s *Session) copy() *Session {
	c := *s
	return &c
}
