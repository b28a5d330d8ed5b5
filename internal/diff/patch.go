// Package diff models single-file unified diffs: parsing, exact rendering and
// hunk re-anchoring. It performs no I/O.
package diff

import "fmt"

// Op identifies the role of a line inside a hunk body.
type Op int

const (
	OpContext Op = iota
	OpAdd
	OpDelete
	// OpNoNewline is the "\ No newline at end of file" marker. It refers to
	// the line before it and is not counted in the hunk lengths.
	OpNoNewline
)

func (o Op) prefix() string {
	switch o {
	case OpAdd:
		return "+"
	case OpDelete:
		return "-"
	case OpNoNewline:
		return "\\"
	default:
		return " "
	}
}

// Line is one tagged line of a hunk body, without its prefix character or
// line feed.
type Line struct {
	Op   Op
	Text string

	// bare marks a context line that was written as an empty line, without
	// the leading space. Rendering keeps it that way.
	bare bool
}

// Hunk is a contiguous change at a specific old/new line offset.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int

	// Section is everything after the closing "@@" of the header, verbatim
	// (usually empty or " funcName(...)").
	Section string

	Lines []Line

	oldCountOmitted bool
	newCountOmitted bool

	// trailer holds unrecognised lines between this hunk's body and the next
	// header; kept verbatim for round-tripping.
	trailer []string
}

// Header renders the "@@ -a,b +c,d @@" line.
func (h Hunk) Header() string {
	return fmt.Sprintf("@@ -%s +%s @@%s",
		formatRange(h.OldStart, h.OldLines, h.oldCountOmitted),
		formatRange(h.NewStart, h.NewLines, h.newCountOmitted),
		h.Section)
}

func formatRange(start, count int, omitted bool) string {
	if omitted && count == 1 {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}

// Delta is the net number of lines the hunk adds to the file.
func (h Hunk) Delta() int {
	return h.NewLines - h.OldLines
}

// OldImage returns the context and removed lines in order: the text the hunk
// expects to find in the source.
func (h Hunk) OldImage() []string {
	out := make([]string, 0, h.OldLines)
	for _, l := range h.Lines {
		if l.Op == OpContext || l.Op == OpDelete {
			out = append(out, l.Text)
		}
	}
	return out
}

// NewImage returns the context and added lines in order: the text the hunk
// leaves behind.
func (h Hunk) NewImage() []string {
	out := make([]string, 0, h.NewLines)
	for _, l := range h.Lines {
		if l.Op == OpContext || l.Op == OpAdd {
			out = append(out, l.Text)
		}
	}
	return out
}

// OldNoNewline reports whether the old image ends without a final newline.
func (h Hunk) OldNoNewline() bool {
	return h.markerAfter(OpDelete)
}

// NewNoNewline reports whether the new image ends without a final newline.
func (h Hunk) NewNoNewline() bool {
	return h.markerAfter(OpAdd)
}

// HasNoNewlineMarker reports whether any "\ No newline" marker is present.
func (h Hunk) HasNoNewlineMarker() bool {
	for _, l := range h.Lines {
		if l.Op == OpNoNewline {
			return true
		}
	}
	return false
}

func (h Hunk) markerAfter(side Op) bool {
	for i, l := range h.Lines {
		if l.Op != OpNoNewline || i == 0 {
			continue
		}
		prev := h.Lines[i-1].Op
		if prev == side || prev == OpContext {
			return true
		}
	}
	return false
}

// Patch is a parsed single-file unified diff.
type Patch struct {
	// Preamble holds any lines before the "--- " header (e.g. "diff --git",
	// "index ..."), verbatim.
	Preamble []string

	SourceLabel string
	DestLabel   string

	Hunks []Hunk

	sourceHeader   string
	destHeader     string
	noFinalNewline bool
}

// Clone returns a deep copy of p.
func (p *Patch) Clone() *Patch {
	c := *p
	c.Preamble = append([]string(nil), p.Preamble...)
	c.Hunks = make([]Hunk, len(p.Hunks))
	for i, h := range p.Hunks {
		h.Lines = append([]Line(nil), h.Lines...)
		h.trailer = append([]string(nil), h.trailer...)
		c.Hunks[i] = h
	}
	return &c
}

// Reanchor returns a copy of p whose hunk headers carry the start lines
// returned by fn. Hunk bodies are untouched.
func (p *Patch) Reanchor(fn func(h Hunk) (oldStart, newStart int)) *Patch {
	c := p.Clone()
	for i := range c.Hunks {
		c.Hunks[i].OldStart, c.Hunks[i].NewStart = fn(c.Hunks[i])
	}
	return c
}

// Reverse returns the inverse patch: labels swapped, added and removed lines
// exchanged.
func (p *Patch) Reverse() *Patch {
	c := p.Clone()
	c.SourceLabel, c.DestLabel = p.DestLabel, p.SourceLabel
	c.sourceHeader, c.destHeader = p.destHeader, p.sourceHeader
	for i := range c.Hunks {
		h := &c.Hunks[i]
		h.OldStart, h.NewStart = h.NewStart, h.OldStart
		h.OldLines, h.NewLines = h.NewLines, h.OldLines
		h.oldCountOmitted, h.newCountOmitted = h.newCountOmitted, h.oldCountOmitted
		for j := range h.Lines {
			switch h.Lines[j].Op {
			case OpAdd:
				h.Lines[j].Op = OpDelete
			case OpDelete:
				h.Lines[j].Op = OpAdd
			}
		}
	}
	return c
}
