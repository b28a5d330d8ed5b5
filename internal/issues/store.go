package issues

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	apperrors "github.com/kvit-s/fixsync/internal/errors"
	"github.com/kvit-s/fixsync/internal/workspace"
)

// Store is the in-memory issue collection backed by one JSON file. A Store is
// owned by a single caller and is not safe for concurrent use.
type Store struct {
	path   string
	byKind map[string][]*Issue
}

// New returns an empty store that will be saved to path.
func New(path string) *Store {
	return &Store{path: path, byKind: make(map[string][]*Issue)}
}

// Load reads the store from path. A missing file yields an empty store.
func Load(path string) (*Store, error) {
	s := New(path)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, apperrors.IoFailure("read issues", path, err)
	}
	byKind, err := Decode(data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIoFailure, "parse issues", err).WithPath(path)
	}
	s.byKind = byKind
	s.sort()
	return s, nil
}

// Path returns the file the store persists to.
func (s *Store) Path() string { return s.path }

// Marshal renders the store in its canonical flat shape.
func (s *Store) Marshal() ([]byte, error) {
	out := make(map[string][]*Issue, len(s.byKind))
	for kind, list := range s.byKind {
		if len(list) > 0 {
			out[kind] = list
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Save writes the store atomically.
func (s *Store) Save() error {
	data, err := s.Marshal()
	if err != nil {
		return apperrors.IoFailure("encode issues", s.path, err)
	}
	if err := workspace.WriteFileAtomic(s.path, data); err != nil {
		return apperrors.IoFailure("write issues", s.path, err)
	}
	return nil
}

// Clone returns a deep copy. Apply works on a clone so a failure before the
// write phase leaves the live store untouched.
func (s *Store) Clone() *Store {
	c := New(s.path)
	for kind, list := range s.byKind {
		cl := make([]*Issue, len(list))
		for i, is := range list {
			cl[i] = is.clone()
		}
		c.byKind[kind] = cl
	}
	return c
}

// Kinds returns the issue kinds in sorted order.
func (s *Store) Kinds() []string {
	kinds := make([]string, 0, len(s.byKind))
	for k, list := range s.byKind {
		if len(list) > 0 {
			kinds = append(kinds, k)
		}
	}
	sort.Strings(kinds)
	return kinds
}

// Len is the total number of issues.
func (s *Store) Len() int {
	n := 0
	for _, list := range s.byKind {
		n += len(list)
	}
	return n
}

// All returns every issue ordered by kind, source file and start line. The
// returned issues are live; callers mutating them mutate the store.
func (s *Store) All() []*Issue {
	var out []*Issue
	for _, kind := range s.Kinds() {
		out = append(out, s.byKind[kind]...)
	}
	return out
}

// Add inserts issues under their Kind and re-sorts.
func (s *Store) Add(list ...*Issue) {
	for _, is := range list {
		s.byKind[is.Kind] = append(s.byKind[is.Kind], is)
	}
	s.sort()
}

// ForSource returns the issues recorded against sourcePath. Issues are
// matched by base file name, with or without extension, case-sensitively.
func (s *Store) ForSource(sourcePath string) []*Issue {
	base := workspace.BaseName(sourcePath)
	stem := strings.TrimSuffix(base, path.Ext(base))

	var out []*Issue
	for _, is := range s.All() {
		if is.SourceFile == base || is.SourceFile == stem {
			out = append(out, is)
		}
	}
	return out
}

// PatchesForSource returns the distinct patch paths referenced by issues of
// sourcePath, in store order.
func (s *Store) PatchesForSource(sourcePath string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, is := range s.ForSource(sourcePath) {
		for _, p := range is.Patches {
			if !seen[p.Path] {
				seen[p.Path] = true
				out = append(out, p.Path)
			}
		}
	}
	return out
}

// Locate returns the issue owning patchPath.
func (s *Store) Locate(patchPath string) (*Issue, error) {
	for _, is := range s.All() {
		if is.HasPatch(patchPath) {
			return is, nil
		}
	}
	return nil, apperrors.IssueNotFound(patchPath)
}

// FixesFor returns the alternative fixes of the issue owning patchPath, best
// score first.
func (s *Store) FixesFor(patchPath string) ([]Patch, error) {
	is, err := s.Locate(patchPath)
	if err != nil {
		return nil, err
	}
	return append([]Patch(nil), is.Patches...), nil
}

// RemoveIssuesForPatch removes every issue whose patch list references
// patchPath and returns their warning ids. Removing a patch that is no longer
// referenced is a no-op.
func (s *Store) RemoveIssuesForPatch(patchPath string) []string {
	var removed []string
	for kind, list := range s.byKind {
		kept := list[:0]
		for _, is := range list {
			if is.HasPatch(patchPath) {
				if is.ID != "" {
					removed = append(removed, string(is.ID))
				}
				continue
			}
			kept = append(kept, is)
		}
		s.setKind(kind, kept)
	}
	sort.Strings(removed)
	return removed
}

// RemovePatch drops patchPath from every issue that lists it and removes
// issues left with no patches. It returns the warning ids of removed issues.
func (s *Store) RemovePatch(patchPath string) []string {
	var removed []string
	for kind, list := range s.byKind {
		kept := list[:0]
		for _, is := range list {
			idx := is.patchIndex(patchPath)
			if idx < 0 {
				kept = append(kept, is)
				continue
			}
			is.Patches = append(is.Patches[:idx], is.Patches[idx+1:]...)
			if len(is.Patches) == 0 {
				if is.ID != "" {
					removed = append(removed, string(is.ID))
				}
				continue
			}
			kept = append(kept, is)
		}
		s.setKind(kind, kept)
	}
	sort.Strings(removed)
	return removed
}

// DropSource removes every issue recorded against the given document base
// name (the issue document's name without ".json").
func (s *Store) DropSource(sourceFile string) int {
	n := 0
	for kind, list := range s.byKind {
		kept := list[:0]
		for _, is := range list {
			if is.SourceFile == sourceFile {
				n++
				continue
			}
			kept = append(kept, is)
		}
		s.setKind(kind, kept)
	}
	return n
}

func (s *Store) setKind(kind string, list []*Issue) {
	if len(list) == 0 {
		delete(s.byKind, kind)
		return
	}
	s.byKind[kind] = list
}

// sort orders issues by source file then start line, and patches by
// descending score.
func (s *Store) sort() {
	for _, list := range s.byKind {
		for _, is := range list {
			is.sortPatches()
		}
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].SourceFile != list[j].SourceFile {
				return list[i].SourceFile < list[j].SourceFile
			}
			return list[i].TextRange.StartLine < list[j].TextRange.StartLine
		})
	}
}

// String summarises the store for logs.
func (s *Store) String() string {
	return fmt.Sprintf("issues(%s: %d issues, %d kinds)", s.path, s.Len(), len(s.Kinds()))
}
