package diff

import (
	"regexp"
	"strconv"
	"strings"

	apperrors "github.com/kvit-s/fixsync/internal/errors"
)

// hunkHeaderRegex matches "@@ -a[,b] +c[,d] @@[section]".
var hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(,\d+)? \+(\d+)(,\d+)? @@(.*)$`)

// Parse parses unified-diff text describing a single file. The result renders
// back to the identical text with Render.
func Parse(text string) (*Patch, error) {
	lines := strings.Split(text, "\n")
	p := &Patch{}
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	} else {
		p.noFinalNewline = true
	}

	i := 0
	for ; i < len(lines); i++ {
		if isFileHeader(lines, i) {
			break
		}
	}
	if i >= len(lines) {
		return nil, apperrors.MalformedPatch("missing ---/+++ file header")
	}

	p.Preamble = append([]string(nil), lines[:i]...)
	p.sourceHeader = strings.TrimPrefix(lines[i], "--- ")
	p.destHeader = strings.TrimPrefix(lines[i+1], "+++ ")
	p.SourceLabel = headerLabel(p.sourceHeader)
	p.DestLabel = headerLabel(p.destHeader)
	i += 2

	for i < len(lines) {
		line := lines[i]
		if !strings.HasPrefix(line, "@@") {
			if len(p.Hunks) == 0 {
				return nil, apperrors.MalformedPatch("line %d: expected hunk header, got %q", i+1, line)
			}
			if isFileHeader(lines, i) {
				return nil, apperrors.MalformedPatch("line %d: second file header; only single-file patches are supported", i+1)
			}
			last := &p.Hunks[len(p.Hunks)-1]
			last.trailer = append(last.trailer, line)
			i++
			continue
		}

		h, err := parseHunkHeader(line)
		if err != nil {
			return nil, apperrors.MalformedPatch("line %d: %v", i+1, err)
		}
		i++

		next, err := parseHunkBody(lines, i, &h)
		if err != nil {
			return nil, apperrors.MalformedPatch("hunk %d: %v", len(p.Hunks)+1, err)
		}
		i = next
		p.Hunks = append(p.Hunks, h)
	}

	if len(p.Hunks) == 0 {
		return nil, apperrors.MalformedPatch("patch has no hunks")
	}
	return p, nil
}

func isFileHeader(lines []string, i int) bool {
	return strings.HasPrefix(lines[i], "--- ") && i+1 < len(lines) && strings.HasPrefix(lines[i+1], "+++ ")
}

// headerLabel returns the path part of a "---"/"+++" header, dropping any
// tab- or space-separated timestamp.
func headerLabel(header string) string {
	header = strings.TrimRight(header, "\r")
	if idx := strings.IndexAny(header, " \t"); idx >= 0 {
		header = header[:idx]
	}
	return header
}

type headerError string

func (e headerError) Error() string { return string(e) }

func parseHunkHeader(line string) (Hunk, error) {
	m := hunkHeaderRegex.FindStringSubmatch(line)
	if m == nil {
		return Hunk{}, headerError("invalid hunk header: " + strconv.Quote(line))
	}
	h := Hunk{Section: m[5]}
	var errOld, errNew error
	h.OldStart, errOld = strconv.Atoi(m[1])
	h.NewStart, errNew = strconv.Atoi(m[3])
	if errOld != nil || errNew != nil {
		return Hunk{}, headerError("hunk start out of range: " + strconv.Quote(line))
	}
	var ok bool
	if h.OldLines, h.oldCountOmitted, ok = parseCount(m[2]); !ok {
		return Hunk{}, headerError("hunk line count out of range: " + strconv.Quote(line))
	}
	if h.NewLines, h.newCountOmitted, ok = parseCount(m[4]); !ok {
		return Hunk{}, headerError("hunk line count out of range: " + strconv.Quote(line))
	}
	return h, nil
}

// parseCount parses an optional ",N" group. Missing counts default to 1.
func parseCount(group string) (n int, omitted, ok bool) {
	if group == "" {
		return 1, true, true
	}
	n, err := strconv.Atoi(group[1:])
	return n, false, err == nil
}

// parseHunkBody consumes body lines starting at i until the header counts are
// satisfied, plus a trailing "\ No newline" marker. Returns the index of the
// first unconsumed line.
func parseHunkBody(lines []string, i int, h *Hunk) (int, error) {
	oldLeft, newLeft := h.OldLines, h.NewLines

	for i < len(lines) && (oldLeft > 0 || newLeft > 0) {
		line := lines[i]
		var l Line
		switch {
		case line == "" || line == "\r":
			l = Line{Op: OpContext, Text: line, bare: true}
		case line[0] == ' ':
			l = Line{Op: OpContext, Text: line[1:]}
		case line[0] == '-':
			l = Line{Op: OpDelete, Text: line[1:]}
		case line[0] == '+':
			l = Line{Op: OpAdd, Text: line[1:]}
		case line[0] == '\\':
			l = Line{Op: OpNoNewline, Text: line[1:]}
		default:
			return 0, headerError("unexpected line " + strconv.Quote(line) + " inside hunk body")
		}

		switch l.Op {
		case OpContext:
			oldLeft--
			newLeft--
		case OpDelete:
			oldLeft--
		case OpAdd:
			newLeft--
		}
		if oldLeft < 0 || newLeft < 0 {
			return 0, headerError("hunk body does not match header line counts")
		}
		h.Lines = append(h.Lines, l)
		i++
	}

	if oldLeft > 0 || newLeft > 0 {
		return 0, headerError("hunk body is shorter than its header line counts")
	}
	if i < len(lines) && strings.HasPrefix(lines[i], "\\") {
		h.Lines = append(h.Lines, Line{Op: OpNoNewline, Text: lines[i][1:]})
		i++
	}
	return i, nil
}
