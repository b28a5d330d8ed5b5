package issues

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	apperrors "github.com/kvit-s/fixsync/internal/errors"
)

const flatDoc = `{
  "NULL_POINTER": [
    {
      "id": 17,
      "textRange": {"startLine": 50, "startColumn": 4, "endLine": 52, "endColumn": 10},
      "patches": [
        {"path": "fix_b.diff", "explanation": "guard", "score": 0.4},
        {"path": "fix_a.diff", "explanation": "early return", "score": 0.9}
      ]
    },
    {
      "id": "w-3",
      "textRange": {"startLine": 10, "startColumn": 0, "endLine": 10, "endColumn": 5},
      "patches": [{"path": "fix_c.diff", "score": 1}]
    }
  ]
}`

const groupedDoc = `[
  {
    "name": "UNUSED_VARIABLE",
    "explanation": "Variable is never read",
    "items": [
      {"id": "u1", "textRange": {"startLine": 3, "startColumn": 0, "endLine": 3, "endColumn": 8}, "patches": [{"path": "u1.diff", "score": 0.5}]},
      {"textRange": {"startLine": 3, "startColumn": 0, "endLine": 3, "endColumn": 8}, "patches": [{"path": "u2.diff", "score": 0.7}]},
      {"id": "u3", "textRange": {"startLine": 9, "startColumn": 1, "endLine": 9, "endColumn": 4}, "patches": []}
    ]
  }
]`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func importDocs(t *testing.T, docs map[string]string) *Store {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"ArrayDemo.java.json", "Util.json"} {
		if content, ok := docs[name]; ok {
			paths = append(paths, writeFile(t, dir, name, content))
		}
	}
	s := New(filepath.Join(dir, "issues.json"))
	if _, err := s.Import(context.Background(), paths); err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	return s
}

func TestDecode_Flat(t *testing.T) {
	byKind, err := Decode([]byte(flatDoc))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	list := byKind["NULL_POINTER"]
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].ID != "17" || list[1].ID != "w-3" {
		t.Errorf("ids = %q, %q; numeric and string ids should both decode", list[0].ID, list[1].ID)
	}
	if list[0].Kind != "NULL_POINTER" || list[0].IssueName != "NULL_POINTER" {
		t.Errorf("kind/name = %q/%q", list[0].Kind, list[0].IssueName)
	}
}

func TestDecode_GroupedMergesIdenticalRanges(t *testing.T) {
	byKind, err := Decode([]byte(groupedDoc))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	list := byKind["UNUSED_VARIABLE"]
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2 (identical ranges merged)", len(list))
	}
	merged := list[0]
	if len(merged.Patches) != 2 {
		t.Errorf("merged patches = %d, want 2", len(merged.Patches))
	}
	if merged.Explanation != "Variable is never read" || merged.IssueName != "UNUSED_VARIABLE" {
		t.Errorf("group fields not copied: %+v", merged)
	}
}

func TestDecode_Invalid(t *testing.T) {
	if _, err := Decode([]byte(`"text"`)); err == nil {
		t.Error("Decode(string) should fail")
	}
	if m, err := Decode([]byte("  \n")); err != nil || len(m) != 0 {
		t.Errorf("Decode(blank) = %v, %v; want empty", m, err)
	}
}

func TestImport_TagsAndSorts(t *testing.T) {
	s := importDocs(t, map[string]string{
		"ArrayDemo.java.json": flatDoc,
		"Util.json":           groupedDoc,
	})

	if s.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", s.Len())
	}

	np := s.ForSource("/proj/src/example/ArrayDemo.java")
	if len(np) != 2 {
		t.Fatalf("ForSource(ArrayDemo.java) = %d issues, want 2", len(np))
	}
	if np[0].TextRange.StartLine != 10 || np[1].TextRange.StartLine != 50 {
		t.Errorf("issues not sorted by start line: %d, %d", np[0].TextRange.StartLine, np[1].TextRange.StartLine)
	}
	if np[1].Patches[0].Path != "fix_a.diff" {
		t.Errorf("patches not sorted by score: first = %q", np[1].Patches[0].Path)
	}

	// "Util" matches Util.java by stem.
	if got := len(s.ForSource("lib/Util.java")); got != 2 {
		t.Errorf("ForSource(Util.java) = %d, want 2", got)
	}
	// Case-sensitive.
	if got := len(s.ForSource("lib/util.java")); got != 0 {
		t.Errorf("ForSource(util.java) = %d, want 0", got)
	}
}

func TestImport_ReplacesDocument(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "ArrayDemo.java.json", flatDoc)
	s := New(filepath.Join(dir, "issues.json"))

	if _, err := s.Import(context.Background(), []string{doc}); err != nil {
		t.Fatal(err)
	}
	res, err := s.Import(context.Background(), []string{doc})
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 {
		t.Errorf("Len() after re-import = %d, want 2", s.Len())
	}
	if res.Replaced != 2 || res.Issues != 2 {
		t.Errorf("ImportResult = %+v", res)
	}
}

func TestImport_FailureLeavesStoreUnchanged(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "A.json", flatDoc)
	bad := writeFile(t, dir, "B.json", "{not json")
	s := New(filepath.Join(dir, "issues.json"))

	_, err := s.Import(context.Background(), []string{good, bad, filepath.Join(dir, "missing.json")})
	if err == nil {
		t.Fatal("Import() should fail")
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after failed import", s.Len())
	}
}

func TestReadList(t *testing.T) {
	dir := t.TempDir()
	list := writeFile(t, dir, "list.txt", "a.json\n\n  /abs/b.json  \n\r\n")

	got, err := ReadList(list, "/proj")
	if err != nil {
		t.Fatalf("ReadList() error: %v", err)
	}
	want := []string{"/proj/a.json", "/abs/b.json"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReadList() = %v, want %v", got, want)
	}
}

func TestRemoveIssuesForPatch_Idempotent(t *testing.T) {
	s := importDocs(t, map[string]string{"ArrayDemo.java.json": flatDoc})

	removed := s.RemoveIssuesForPatch("/out/patches/fix_b.diff")
	if !reflect.DeepEqual(removed, []string{"17"}) {
		t.Errorf("removed = %v, want [17]", removed)
	}
	after1, _ := s.Marshal()

	removed = s.RemoveIssuesForPatch("/out/patches/fix_b.diff")
	if len(removed) != 0 {
		t.Errorf("second removal returned %v, want none", removed)
	}
	after2, _ := s.Marshal()
	if string(after1) != string(after2) {
		t.Error("second removal changed the store")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestRemovePatch(t *testing.T) {
	s := importDocs(t, map[string]string{"ArrayDemo.java.json": flatDoc})

	if removed := s.RemovePatch("fix_a.diff"); len(removed) != 0 {
		t.Errorf("RemovePatch(fix_a) removed issues %v; fix_b remains", removed)
	}
	is, err := s.Locate("fix_b.diff")
	if err != nil {
		t.Fatalf("Locate(fix_b) error: %v", err)
	}
	if len(is.Patches) != 1 {
		t.Errorf("patches left = %d, want 1", len(is.Patches))
	}

	if removed := s.RemovePatch("fix_b.diff"); !reflect.DeepEqual(removed, []string{"17"}) {
		t.Errorf("RemovePatch(fix_b) = %v, want [17]", removed)
	}
	if _, err := s.Locate("fix_b.diff"); !apperrors.IsCode(err, apperrors.CodeIssueNotFound) {
		t.Errorf("Locate() after removal error = %v, want issue.not_found", err)
	}
}

func TestFixesFor(t *testing.T) {
	s := importDocs(t, map[string]string{"ArrayDemo.java.json": flatDoc})

	fixes, err := s.FixesFor("out/fix_b.diff")
	if err != nil {
		t.Fatalf("FixesFor() error: %v", err)
	}
	var paths []string
	for _, f := range fixes {
		paths = append(paths, f.Path)
	}
	if want := []string{"fix_a.diff", "fix_b.diff"}; !reflect.DeepEqual(paths, want) {
		t.Errorf("FixesFor() = %v, want %v", paths, want)
	}

	if _, err := s.FixesFor("nowhere.diff"); !apperrors.IsCode(err, apperrors.CodeIssueNotFound) {
		t.Errorf("FixesFor(unknown) error = %v, want issue.not_found", err)
	}
}

func TestSamePatch(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"fix_1.diff", "fix_1.diff", true},
		{"fix_1.diff", "/out/patches/fix_1.diff", true},
		{`C:\out\fix_1.diff`, "out/fix_1.diff", true},
		{"fix_1.diff", "/out/xfix_1.diff", false},
		{"fix_1.diff", "fix_10.diff", false},
		{"", "fix.diff", false},
	}
	for _, tt := range tests {
		if got := SamePatch(tt.a, tt.b); got != tt.want {
			t.Errorf("SamePatch(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := importDocs(t, map[string]string{"ArrayDemo.java.json": flatDoc, "Util.json": groupedDoc})
	if err := s.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := Load(s.Path())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	a, _ := s.Marshal()
	b, _ := loaded.Marshal()
	if string(a) != string(b) {
		t.Errorf("store changed across Save/Load:\n%s\nvs\n%s", a, b)
	}
	if !strings.Contains(string(a), `"sourceFileName": "ArrayDemo.java"`) {
		t.Errorf("sourceFileName not persisted:\n%s", a)
	}
}

func TestLoad_Missing(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "none.json"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestTextRangeValid(t *testing.T) {
	tests := []struct {
		r    TextRange
		want bool
	}{
		{TextRange{1, 0, 1, 0}, true},
		{TextRange{1, 5, 1, 2}, false},
		{TextRange{2, 9, 3, 0}, true},
		{TextRange{4, 0, 3, 0}, false},
		{TextRange{0, 0, 1, 0}, false},
	}
	for _, tt := range tests {
		if got := tt.r.Valid(); got != tt.want {
			t.Errorf("%v.Valid() = %v, want %v", tt.r, got, tt.want)
		}
	}
}
