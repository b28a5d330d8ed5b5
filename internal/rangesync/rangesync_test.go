package rangesync

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/multierr"

	"github.com/kvit-s/fixsync/internal/diff"
	apperrors "github.com/kvit-s/fixsync/internal/errors"
	"github.com/kvit-s/fixsync/internal/issues"
	"github.com/kvit-s/fixsync/internal/shift"
)

const p1 = "--- src/F.java\n+++ src/F.java\n@@ -10,2 +10,5 @@\n line 10\n+a\n+b\n+c\n line 11\n"

const p2 = "--- src/F.java\n+++ src/F.java\n@@ -50,3 +50,3 @@ void run() {\n line 50\n-line 51\n+LINE 51\n line 52\n"

func tableFor(t *testing.T, text string) shift.Table {
	t.Helper()
	p, err := diff.Parse(text)
	if err != nil {
		t.Fatalf("diff.Parse() error: %v", err)
	}
	return shift.Compute(p)
}

func storeWith(list ...*issues.Issue) *issues.Store {
	s := issues.New("issues.json")
	s.Add(list...)
	return s
}

func TestSiblingReanchoring(t *testing.T) {
	dir := t.TempDir()
	p2Path := filepath.Join(dir, "p2.diff")
	if err := os.WriteFile(p2Path, []byte(p2), 0644); err != nil {
		t.Fatal(err)
	}
	table := tableFor(t, p1)

	plans, err := PlanSiblingRewrites([]string{p2Path}, table, shift.Forward)
	if err != nil {
		t.Fatalf("PlanSiblingRewrites() error: %v", err)
	}
	if len(plans) != 1 || !plans[0].Changed {
		t.Fatalf("plans = %+v, want one changed plan", plans)
	}

	// Planning must not write.
	if data, _ := os.ReadFile(p2Path); string(data) != p2 {
		t.Fatal("PlanSiblingRewrites wrote to disk")
	}

	written, err := Commit(plans)
	if err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	if !reflect.DeepEqual(written, []string{p2Path}) {
		t.Errorf("written = %v", written)
	}

	data, _ := os.ReadFile(p2Path)
	want := strings.Replace(p2, "@@ -50,3 +50,3 @@", "@@ -53,3 +53,3 @@", 1)
	if string(data) != want {
		t.Errorf("sibling after rewrite:\n%s\nwant:\n%s", data, want)
	}

	// Inverse restores the original header and nothing else.
	plans, err = PlanSiblingRewrites([]string{p2Path}, table, shift.Inverse)
	if err != nil {
		t.Fatalf("PlanSiblingRewrites(Inverse) error: %v", err)
	}
	if _, err := Commit(plans); err != nil {
		t.Fatalf("Commit(Inverse) error: %v", err)
	}
	data, _ = os.ReadFile(p2Path)
	if string(data) != p2 {
		t.Errorf("inverse rewrite = %q, want original", data)
	}
}

func TestUpdateRanges(t *testing.T) {
	at50 := &issues.Issue{Kind: "K", SourceFile: "F.java", TextRange: issues.TextRange{StartLine: 50, EndLine: 51, EndColumn: 3}}
	at10 := &issues.Issue{Kind: "K", SourceFile: "F.java", TextRange: issues.TextRange{StartLine: 10, EndLine: 12}}
	before := &issues.Issue{Kind: "K", SourceFile: "F.java", TextRange: issues.TextRange{StartLine: 3, EndLine: 4}}
	other := &issues.Issue{Kind: "K", SourceFile: "G.java", TextRange: issues.TextRange{StartLine: 50, EndLine: 50}}
	s := storeWith(at50, at10, before, other)

	table := tableFor(t, p1)
	if !UpdateRanges(s, "/proj/src/F.java", table, shift.Forward) {
		t.Fatal("UpdateRanges() = false, want true")
	}

	if at50.TextRange.StartLine != 53 || at50.TextRange.EndLine != 54 {
		t.Errorf("issue at 50 = %v, want 53-54", at50.TextRange)
	}
	// Start on the key itself stays, the end moves.
	if at10.TextRange.StartLine != 10 || at10.TextRange.EndLine != 15 {
		t.Errorf("issue at 10 = %v, want 10-15", at10.TextRange)
	}
	if before.TextRange.StartLine != 3 {
		t.Errorf("issue before hunk moved to %d", before.TextRange.StartLine)
	}
	if other.TextRange.StartLine != 50 {
		t.Errorf("issue of another file moved to %d", other.TextRange.StartLine)
	}
	if at50.TextRange.EndColumn != 3 {
		t.Error("columns must not change")
	}

	UpdateRanges(s, "/proj/src/F.java", table, shift.Inverse)
	if at50.TextRange.StartLine != 50 || at10.TextRange.EndLine != 12 {
		t.Errorf("inverse did not restore: %v, %v", at50.TextRange, at10.TextRange)
	}
}

func TestUpdateRanges_MultipleHunks(t *testing.T) {
	const twoHunks = "--- src/F.java\n+++ src/F.java\n" +
		"@@ -10,1 +10,3 @@\n line 10\n+a\n+b\n" +
		"@@ -30,1 +32,4 @@\n line 30\n+c\n+d\n+e\n"
	table := tableFor(t, twoHunks)
	if want := (shift.Table{{Line: 10, Delta: 2}, {Line: 30, Delta: 5}}); !reflect.DeepEqual(table, want) {
		t.Fatalf("table = %v, want %v", table, want)
	}

	onSecondKey := &issues.Issue{Kind: "K", SourceFile: "F.java", TextRange: issues.TextRange{StartLine: 30, EndLine: 30}}
	spanning := &issues.Issue{Kind: "K", SourceFile: "F.java", TextRange: issues.TextRange{StartLine: 5, EndLine: 15}}
	afterBoth := &issues.Issue{Kind: "K", SourceFile: "F.java", TextRange: issues.TextRange{StartLine: 31, EndLine: 40}}
	s := storeWith(onSecondKey, spanning, afterBoth)

	if !UpdateRanges(s, "F.java", table, shift.Forward) {
		t.Fatal("UpdateRanges() = false, want true")
	}

	// Each line moves by the delta of the last key strictly before it.
	tests := []struct {
		name       string
		is         *issues.Issue
		start, end int
	}{
		{"start on second key", onSecondKey, 32, 32},
		{"range spanning first key", spanning, 5, 17},
		{"range after both keys", afterBoth, 36, 45},
	}
	for _, tt := range tests {
		if r := tt.is.TextRange; r.StartLine != tt.start || r.EndLine != tt.end {
			t.Errorf("%s: range = %d-%d, want %d-%d", tt.name, r.StartLine, r.EndLine, tt.start, tt.end)
		}
	}
}

func TestUpdateRanges_NoChange(t *testing.T) {
	s := storeWith(&issues.Issue{Kind: "K", SourceFile: "F.java", TextRange: issues.TextRange{StartLine: 2, EndLine: 2}})
	if UpdateRanges(s, "F.java", tableFor(t, p1), shift.Forward) {
		t.Error("UpdateRanges() = true for an issue before every key")
	}
	if UpdateRanges(s, "F.java", nil, shift.Forward) {
		t.Error("UpdateRanges() with empty table = true")
	}
}

func TestPlanSiblingRewrites_AbortsOnMalformedSibling(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.diff")
	bad := filepath.Join(dir, "bad.diff")
	os.WriteFile(good, []byte(p2), 0644)
	os.WriteFile(bad, []byte("not a patch\n"), 0644)

	_, err := PlanSiblingRewrites([]string{good, bad}, tableFor(t, p1), shift.Forward)
	if !apperrors.IsCode(err, apperrors.CodeMalformedPatch) {
		t.Fatalf("error = %v, want patch.malformed", err)
	}
	if !strings.Contains(err.Error(), "bad.diff") {
		t.Errorf("error %q should name the sibling", err)
	}
	if data, _ := os.ReadFile(good); string(data) != p2 {
		t.Error("good sibling was modified although planning failed")
	}
}

func TestPlanSiblingRewrites_SkipsMissing(t *testing.T) {
	plans, err := PlanSiblingRewrites([]string{filepath.Join(t.TempDir(), "gone.diff")}, tableFor(t, p1), shift.Forward)
	if err != nil || len(plans) != 0 {
		t.Errorf("PlanSiblingRewrites() = %v, %v; want no plans, no error", plans, err)
	}
}

func TestCommit_CollectsFailures(t *testing.T) {
	dir := t.TempDir()
	ok := filepath.Join(dir, "ok.diff")
	blocker := filepath.Join(dir, "file")
	os.WriteFile(blocker, []byte("x"), 0644)
	// A path under a regular file cannot be created.
	bad1 := filepath.Join(blocker, "a.diff")
	bad2 := filepath.Join(blocker, "b.diff")

	written, err := Commit([]Rewrite{
		{Path: bad1, After: "x", Changed: true},
		{Path: ok, After: "y", Changed: true},
		{Path: bad2, After: "z", Changed: true},
		{Path: filepath.Join(dir, "same.diff"), After: "w", Changed: false},
	})
	if len(multierr.Errors(err)) != 2 {
		t.Fatalf("Commit() errors = %v, want 2", err)
	}
	if !reflect.DeepEqual(written, []string{ok}) {
		t.Errorf("written = %v, want [%s]", written, ok)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "same.diff")); !os.IsNotExist(statErr) {
		t.Error("unchanged plan should not be written")
	}
}

func TestPlanRestore_DeletingHunk(t *testing.T) {
	const deleting = "--- src/F.java\n+++ src/F.java\n@@ -10,5 +10,2 @@\n line 10\n-line 11\n-line 12\n-line 13\n line 14\n"
	const sibling = "--- src/F.java\n+++ src/F.java\n@@ -12,1 +12,1 @@\n-line 12\n+LINE 12\n"

	dir := t.TempDir()
	path := filepath.Join(dir, "sibling.diff")
	os.WriteFile(path, []byte(sibling), 0644)
	table := tableFor(t, deleting)

	plans, err := PlanSiblingRewrites([]string{path}, table, shift.Forward)
	if err != nil {
		t.Fatalf("PlanSiblingRewrites() error: %v", err)
	}
	if _, err := Commit(plans); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	if data, _ := os.ReadFile(path); !strings.Contains(string(data), "@@ -9,1 +9,1 @@") {
		t.Fatalf("forward rewrite = %q, want header -9", data)
	}

	restore, err := PlanRestore(plans, table, shift.Inverse)
	if err != nil {
		t.Fatalf("PlanRestore() error: %v", err)
	}
	written, err := Commit(restore)
	if err != nil {
		t.Fatalf("Commit(restore) error: %v", err)
	}
	if !reflect.DeepEqual(written, []string{path}) {
		t.Errorf("written = %v", written)
	}
	if data, _ := os.ReadFile(path); string(data) != sibling {
		t.Errorf("restored sibling = %q, want original %q", data, sibling)
	}
}

func TestPlanRestore_EditedSinceFallsBackToTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p2.diff")
	table := tableFor(t, p1)

	moved := strings.Replace(p2, "@@ -50,3 +50,3 @@", "@@ -53,3 +53,3 @@", 1)
	edited := strings.Replace(moved, "+LINE 51", "+Line 51", 1)
	os.WriteFile(path, []byte(edited), 0644)

	recorded := []Rewrite{{Path: path, Before: p2, After: moved}}
	plans, err := PlanRestore(recorded, table, shift.Inverse)
	if err != nil {
		t.Fatalf("PlanRestore() error: %v", err)
	}
	if _, err := Commit(plans); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}

	want := strings.Replace(p2, "+LINE 51", "+Line 51", 1)
	if data, _ := os.ReadFile(path); string(data) != want {
		t.Errorf("restored = %q, want %q", data, want)
	}

	// A missing sibling is skipped.
	plans, err = PlanRestore([]Rewrite{{Path: filepath.Join(dir, "gone.diff")}}, table, shift.Inverse)
	if err != nil || len(plans) != 0 {
		t.Errorf("PlanRestore(missing) = %v, %v; want no plans", plans, err)
	}
}
