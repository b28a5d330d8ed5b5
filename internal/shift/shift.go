// Package shift computes cumulative line-shift tables from parsed patches and
// maps line numbers across an applied patch in either direction.
package shift

import (
	"sort"

	"github.com/kvit-s/fixsync/internal/diff"
)

// Direction selects whether a table is applied (Forward) or undone (Inverse).
type Direction int

const (
	Forward Direction = iota
	Inverse
)

func (d Direction) String() string {
	if d == Inverse {
		return "inverse"
	}
	return "forward"
}

// Entry is one key of a Table: from pre-image line Line onward, line numbers
// move by Delta (cumulative over all hunks up to and including this one).
type Entry struct {
	Line  int `json:"line"`
	Delta int `json:"delta"`
}

// Table is a cumulative shift table ordered by Line. It is stored verbatim in
// undo snapshots so the exact table used at apply time can be inverted later.
type Table []Entry

// Compute derives the shift table of p: for each hunk in file order, the key
// is the hunk's OldStart and the value the running sum of NewLines-OldLines.
// When two hunks share an OldStart the later value wins.
func Compute(p *diff.Patch) Table {
	t := make(Table, 0, len(p.Hunks))
	cumulative := 0
	for _, h := range p.Hunks {
		cumulative += h.Delta()
		if n := len(t); n > 0 && t[n-1].Line == h.OldStart {
			t[n-1].Delta = cumulative
			continue
		}
		t = append(t, Entry{Line: h.OldStart, Delta: cumulative})
	}
	sort.SliceStable(t, func(i, j int) bool { return t[i].Line < t[j].Line })
	return t
}

// Total is the net number of lines the patch adds.
func (t Table) Total() int {
	if len(t) == 0 {
		return 0
	}
	return t[len(t)-1].Delta
}

// Invert returns the table that maps post-image lines back to pre-image
// lines: keys move into post-image coordinates (OldStart plus the cumulative
// delta before the hunk) and deltas are negated.
func (t Table) Invert() Table {
	inv := make(Table, len(t))
	before := 0
	for i, e := range t {
		inv[i] = Entry{Line: e.Line + before, Delta: -e.Delta}
		before = e.Delta
	}
	return inv
}

// Shift maps line through the table: the greatest key <= line supplies the
// delta. Lines before the first key are unaffected.
func (t Table) Shift(line int, dir Direction) int {
	return t.oriented(dir).lookup(line, true)
}

// ShiftAfter is Shift restricted to keys strictly before line. Issue ranges
// use it: a range starting on the hunk's first line stays put.
func (t Table) ShiftAfter(line int, dir Direction) int {
	return t.oriented(dir).lookup(line, false)
}

func (t Table) oriented(dir Direction) Table {
	if dir == Inverse {
		return t.Invert()
	}
	return t
}

func (t Table) lookup(line int, inclusive bool) int {
	// First index whose key is past line.
	i := sort.Search(len(t), func(i int) bool {
		if inclusive {
			return t[i].Line > line
		}
		return t[i].Line >= line
	})
	if i == 0 {
		return line
	}
	return line + t[i-1].Delta
}
