// Package issues holds the issue store: located findings, each with a text
// range in one source file and zero or more candidate patches.
//
// The store is persisted as a single JSON object mapping issue kind to a list
// of issues. Issue documents produced by the fix generator come either in that
// flat shape or grouped as [{name, explanation, items}]; both are normalized
// into Issue values on load.
package issues

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// TextRange locates an issue: 1-indexed lines, 0-indexed columns.
type TextRange struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
	EndLine     int `json:"endLine"`
	EndColumn   int `json:"endColumn"`
}

// Valid reports whether the range starts before it ends.
func (r TextRange) Valid() bool {
	if r.StartLine < 1 || r.StartLine > r.EndLine {
		return false
	}
	return r.StartLine < r.EndLine || r.StartColumn <= r.EndColumn
}

func (r TextRange) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", r.StartLine, r.StartColumn, r.EndLine, r.EndColumn)
}

// Patch is one candidate fix. Path is usually relative to the patches
// directory.
type Patch struct {
	Path        string  `json:"path"`
	Explanation string  `json:"explanation,omitempty"`
	Score       float64 `json:"score"`
}

// WarningID identifies the external per-issue record. Generators emit it as
// a string or a number; it is kept as text.
type WarningID string

// UnmarshalJSON accepts a JSON string or number.
func (w *WarningID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*w = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*w = WarningID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("warning id: %w", err)
	}
	*w = WarningID(n.String())
	return nil
}

// Issue is a located finding.
type Issue struct {
	ID          WarningID `json:"id,omitempty"`
	IssueName   string    `json:"issueName,omitempty"`
	Explanation string    `json:"explanation,omitempty"`
	TextRange   TextRange `json:"textRange"`
	Patches     []Patch   `json:"patches"`

	// SourceFile is the base name of the issue document the issue came
	// from, which names the source file it refers to.
	SourceFile string `json:"sourceFileName,omitempty"`

	// Kind is the key the issue is grouped under; not serialized inside the
	// issue itself.
	Kind string `json:"-"`
}

func (i *Issue) clone() *Issue {
	c := *i
	c.Patches = append([]Patch(nil), i.Patches...)
	return &c
}

// HasPatch reports whether any of the issue's patches matches patchPath.
func (i *Issue) HasPatch(patchPath string) bool {
	return i.patchIndex(patchPath) >= 0
}

func (i *Issue) patchIndex(patchPath string) int {
	for idx, p := range i.Patches {
		if SamePatch(p.Path, patchPath) {
			return idx
		}
	}
	return -1
}

func (i *Issue) sortPatches() {
	sort.SliceStable(i.Patches, func(a, b int) bool {
		return i.Patches[a].Score > i.Patches[b].Score
	})
}

// SamePatch reports whether two patch references name the same file: equal
// after slash normalization, or one is a suffix of the other on a path
// boundary ("fix_1.diff" matches "/out/patches/fix_1.diff").
func SamePatch(a, b string) bool {
	a = strings.ReplaceAll(a, "\\", "/")
	b = strings.ReplaceAll(b, "\\", "/")
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	if len(a) < len(b) {
		a, b = b, a
	}
	return strings.HasSuffix(a, "/"+strings.TrimPrefix(b, "./"))
}

// flatDocument is the canonical shape: kind -> issues.
type flatDocument map[string][]*Issue

// groupedDocument is the generator's grouped shape.
type groupedDocument []struct {
	Name        string   `json:"name"`
	Explanation string   `json:"explanation"`
	Items       []*Issue `json:"items"`
}

// Decode parses an issue document in either shape and returns its issues
// keyed by kind. Grouped items sharing a text range under the same name are
// merged into one issue with the concatenated patch lists.
func Decode(data []byte) (map[string][]*Issue, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return map[string][]*Issue{}, nil
	}

	switch trimmed[0] {
	case '{':
		var doc flatDocument
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("decode issues: %w", err)
		}
		out := make(map[string][]*Issue, len(doc))
		for kind, list := range doc {
			for _, is := range list {
				if is == nil {
					continue
				}
				is.Kind = kind
				if is.IssueName == "" {
					is.IssueName = kind
				}
				out[kind] = append(out[kind], is)
			}
		}
		return out, nil

	case '[':
		var doc groupedDocument
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("decode grouped issues: %w", err)
		}
		out := make(map[string][]*Issue)
		for _, group := range doc {
			for _, item := range group.Items {
				if item == nil {
					continue
				}
				if existing := findRange(out[group.Name], item.TextRange); existing != nil {
					existing.Patches = append(existing.Patches, item.Patches...)
					continue
				}
				item.Kind = group.Name
				item.IssueName = group.Name
				item.Explanation = group.Explanation
				out[group.Name] = append(out[group.Name], item)
			}
		}
		return out, nil

	default:
		return nil, fmt.Errorf("decode issues: expected a JSON object or array")
	}
}

func findRange(list []*Issue, r TextRange) *Issue {
	for _, is := range list {
		if is.TextRange == r {
			return is
		}
	}
	return nil
}
