// Package apply applies parsed unified diffs to source text.
//
// Apply is a pure function: it never touches the filesystem. Hunks are located
// by searching outward from the offset their header claims, within a bounded
// window, comparing lines either byte-for-byte or with whitespace runs
// collapsed.
package apply

import (
	"fmt"
	"strings"

	"github.com/kvit-s/fixsync/internal/diff"
	apperrors "github.com/kvit-s/fixsync/internal/errors"
)

// Mode selects how source lines are compared against hunk lines.
type Mode int

const (
	// WhitespaceTolerant collapses whitespace runs to a single space and
	// trims both ends before comparing.
	WhitespaceTolerant Mode = iota
	// Exact compares lines byte-for-byte, ignoring only the line terminator.
	Exact
)

// DefaultWindow is how far (in lines) a hunk may drift from its claimed
// position and still be found.
const DefaultWindow = 100

func (m Mode) String() string {
	if m == Exact {
		return "exact"
	}
	return "whitespace"
}

// ParseMode maps a configuration value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "whitespace", "whitespace_tolerant", "tolerant":
		return WhitespaceTolerant, nil
	case "exact":
		return Exact, nil
	default:
		return 0, fmt.Errorf("unknown apply mode %q (want exact or whitespace)", s)
	}
}

// Options control matching.
type Options struct {
	Mode   Mode
	Window int
}

// DefaultOptions returns whitespace-tolerant matching with the default window.
func DefaultOptions() Options {
	return Options{Mode: WhitespaceTolerant, Window: DefaultWindow}
}

// Result is the outcome of a successful Apply.
type Result struct {
	Text string

	// Offsets holds, per hunk, how many lines away from its claimed old
	// position the hunk was found (negative means earlier in the file).
	Offsets []int
}

// Apply applies p to source. It fails with AlreadyApplied when the patch's
// post-image is already present, and with HunkMismatch naming the first hunk
// that could not be located otherwise.
func Apply(source string, p *diff.Patch, opts Options) (*Result, error) {
	if opts.Window < 0 {
		opts.Window = 0
	}
	buf := splitSource(source)

	if alreadyApplied(buf.lines, p, opts.Mode) {
		return nil, apperrors.AlreadyApplied()
	}

	res, failed := applyHunks(buf, p, opts)
	if failed < 0 {
		return res, nil
	}

	// The forward search failed; if the reversed patch applies cleanly the
	// change is already in the file, possibly shifted.
	if _, revFailed := applyHunks(buf, p.Reverse(), opts); revFailed < 0 {
		return nil, apperrors.AlreadyApplied()
	}
	return nil, apperrors.HunkMismatch(failed, opts.Window)
}

// sourceBuffer is source text split into lines. Lines keep a trailing "\r"
// when the file uses CRLF endings.
type sourceBuffer struct {
	lines        []string
	finalNewline bool
	crlf         bool
}

func splitSource(source string) sourceBuffer {
	if source == "" {
		return sourceBuffer{finalNewline: true}
	}
	b := sourceBuffer{crlf: strings.Contains(source, "\r\n")}
	b.lines = strings.Split(source, "\n")
	if b.lines[len(b.lines)-1] == "" {
		b.lines = b.lines[:len(b.lines)-1]
		b.finalNewline = true
	}
	return b
}

// applyHunks applies every hunk in order. It returns the index of the first
// hunk that could not be located, or -1 on success.
func applyHunks(buf sourceBuffer, p *diff.Patch, opts Options) (*Result, int) {
	lines := buf.lines
	out := make([]string, 0, len(lines)+16)
	offsets := make([]int, 0, len(p.Hunks))
	finalNewline := buf.finalNewline

	cursor := 0
	drift := 0
	for i, h := range p.Hunks {
		oldImage := h.OldImage()
		base := oldBase(h)

		pos, ok := locate(lines, oldImage, base+drift, cursor, opts)
		if !ok {
			return nil, i
		}

		out = append(out, lines[cursor:pos]...)
		out = append(out, hunkOutput(h, lines[pos:pos+len(oldImage)], buf.crlf)...)
		cursor = pos + len(oldImage)
		drift = pos - base
		offsets = append(offsets, drift)

		if cursor == len(lines) && h.HasNoNewlineMarker() {
			finalNewline = !h.NewNoNewline()
		}
	}
	out = append(out, lines[cursor:]...)

	text := strings.Join(out, "\n")
	if finalNewline && len(out) > 0 {
		text += "\n"
	}
	return &Result{Text: text, Offsets: offsets}, -1
}

// oldBase is the zero-based index in the source where the hunk's old image
// begins. A hunk with an empty old side inserts after line OldStart.
func oldBase(h diff.Hunk) int {
	if h.OldLines == 0 {
		return h.OldStart
	}
	return h.OldStart - 1
}

func newBase(h diff.Hunk) int {
	if h.NewLines == 0 {
		return h.NewStart
	}
	return h.NewStart - 1
}

// locate searches outward from want for a position >= floor where image
// matches, trying want first, then want-1, want+1, and so on.
func locate(lines, image []string, want, floor int, opts Options) (int, bool) {
	for d := 0; d <= opts.Window; d++ {
		for _, pos := range [2]int{want - d, want + d} {
			if pos < floor || pos+len(image) > len(lines) {
				continue
			}
			if matchAt(lines, pos, image, opts.Mode) {
				return pos, true
			}
			if d == 0 {
				break
			}
		}
	}
	return 0, false
}

func matchAt(lines []string, pos int, image []string, mode Mode) bool {
	if pos < 0 || pos+len(image) > len(lines) {
		return false
	}
	for j, want := range image {
		if normalize(lines[pos+j], mode) != normalize(want, mode) {
			return false
		}
	}
	return true
}

func normalize(s string, mode Mode) string {
	s = strings.TrimSuffix(s, "\r")
	if mode == Exact {
		return s
	}
	return strings.Join(strings.Fields(s), " ")
}

// hunkOutput produces the replacement for the matched source lines: context
// lines keep the source's text, added lines come from the patch.
func hunkOutput(h diff.Hunk, matched []string, crlf bool) []string {
	res := make([]string, 0, h.NewLines)
	j := 0
	for _, l := range h.Lines {
		switch l.Op {
		case diff.OpContext:
			res = append(res, matched[j])
			j++
		case diff.OpDelete:
			j++
		case diff.OpAdd:
			text := l.Text
			if crlf && !strings.HasSuffix(text, "\r") {
				text += "\r"
			}
			res = append(res, text)
		}
	}
	return res
}

// alreadyApplied is the cheap pre-check: every hunk's post-image sits at its
// claimed new position and at least one pre-image is gone from its claimed
// old position or is empty.
func alreadyApplied(lines []string, p *diff.Patch, mode Mode) bool {
	preMissing := false
	for _, h := range p.Hunks {
		newImage := h.NewImage()
		if len(newImage) == 0 {
			return false
		}
		if !matchAt(lines, newBase(h), newImage, mode) {
			return false
		}
		// An empty pre-image matches anywhere, so a pure insertion whose
		// lines already sit at their new position counts as missing.
		oldImage := h.OldImage()
		if len(oldImage) == 0 || !matchAt(lines, oldBase(h), oldImage, mode) {
			preMissing = true
		}
	}
	return preMissing
}
