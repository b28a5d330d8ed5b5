package shift

import (
	"encoding/json"
	"fmt"
	"reflect"
	"testing"

	"github.com/kvit-s/fixsync/internal/diff"
)

// hunkPatch builds a patch from (oldStart, oldLines, newStart, newLines)
// headers. Bodies are synthesized to satisfy the counts.
func hunkPatch(t *testing.T, headers [][4]int) *diff.Patch {
	t.Helper()
	text := "--- f\n+++ f\n"
	for _, h := range headers {
		text += formatHeader(h)
		common := min(h[1], h[3])
		for i := 0; i < common; i++ {
			text += " ctx\n"
		}
		for i := common; i < h[1]; i++ {
			text += "-old\n"
		}
		for i := common; i < h[3]; i++ {
			text += "+new\n"
		}
	}
	p, err := diff.Parse(text)
	if err != nil {
		t.Fatalf("diff.Parse() error: %v", err)
	}
	return p
}

func formatHeader(h [4]int) string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@\n", h[0], h[1], h[2], h[3])
}

func TestCompute(t *testing.T) {
	p := hunkPatch(t, [][4]int{{10, 10, 10, 12}, {30, 5, 32, 5}})
	got := Compute(p)
	want := Table{{Line: 10, Delta: 2}, {Line: 30, Delta: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Compute() = %v, want %v", got, want)
	}

	tests := []struct {
		line int
		want int
	}{
		{5, 5},
		{9, 9},
		{10, 12},
		{29, 31},
		{40, 42},
	}
	for _, tt := range tests {
		if got := got.Shift(tt.line, Forward); got != tt.want {
			t.Errorf("Shift(%d, Forward) = %d, want %d", tt.line, got, tt.want)
		}
	}
}

func TestCompute_Cumulative(t *testing.T) {
	p := hunkPatch(t, [][4]int{{5, 1, 5, 4}, {20, 4, 23, 1}, {40, 0, 38, 2}})
	got := Compute(p)
	want := Table{{Line: 5, Delta: 3}, {Line: 20, Delta: 0}, {Line: 40, Delta: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Compute() = %v, want %v", got, want)
	}
	if got.Total() != 2 {
		t.Errorf("Total() = %d, want 2", got.Total())
	}
}

func TestCompute_TieKeepsLater(t *testing.T) {
	p := hunkPatch(t, [][4]int{{10, 0, 10, 2}, {10, 1, 13, 4}})
	got := Compute(p)
	want := Table{{Line: 10, Delta: 5}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Compute() = %v, want %v", got, want)
	}
}

func TestShift_InverseRoundTrip(t *testing.T) {
	table := Compute(hunkPatch(t, [][4]int{{10, 2, 10, 5}, {30, 6, 33, 2}, {60, 1, 57, 1}}))

	// Lines outside hunk bodies survive a forward/inverse round trip.
	for _, line := range []int{1, 9, 12, 25, 29, 36, 50, 59, 60, 100} {
		fwd := table.Shift(line, Forward)
		if back := table.Shift(fwd, Inverse); back != line {
			t.Errorf("Inverse(Forward(%d)) = %d (forward %d)", line, back, fwd)
		}
	}
}

func TestShiftAfter(t *testing.T) {
	table := Table{{Line: 10, Delta: 3}}

	if got := table.ShiftAfter(10, Forward); got != 10 {
		t.Errorf("ShiftAfter(10) = %d, want 10", got)
	}
	if got := table.ShiftAfter(50, Forward); got != 53 {
		t.Errorf("ShiftAfter(50) = %d, want 53", got)
	}
	if got := table.ShiftAfter(53, Inverse); got != 50 {
		t.Errorf("ShiftAfter(53, Inverse) = %d, want 50", got)
	}
}

func TestInvert(t *testing.T) {
	table := Table{{Line: 10, Delta: 2}, {Line: 30, Delta: -1}}
	want := Table{{Line: 10, Delta: -2}, {Line: 32, Delta: 1}}
	if got := table.Invert(); !reflect.DeepEqual(got, want) {
		t.Errorf("Invert() = %v, want %v", got, want)
	}
}

func TestTableJSON(t *testing.T) {
	table := Table{{Line: 10, Delta: 2}, {Line: 30, Delta: 2}}
	data, err := json.Marshal(table)
	if err != nil {
		t.Fatalf("json.Marshal() error: %v", err)
	}
	if string(data) != `[{"line":10,"delta":2},{"line":30,"delta":2}]` {
		t.Errorf("json = %s", data)
	}
}
