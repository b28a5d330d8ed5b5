package ui

import (
	"fmt"
	"strings"

	"github.com/kvit-s/fixsync/internal/diff"
	"github.com/kvit-s/fixsync/internal/issues"
)

// FormatStats renders "+3 -1 (2 hunks)".
func FormatStats(s diff.Stats) string {
	hunks := "hunks"
	if s.Hunks == 1 {
		hunks = "hunk"
	}
	return fmt.Sprintf("+%d -%d (%d %s)", s.Added, s.Deleted, s.Hunks, hunks)
}

// FormatOffsets describes where hunks landed relative to their headers, or
// returns "" when every hunk applied at its claimed line.
func FormatOffsets(offsets []int) string {
	var parts []string
	for i, off := range offsets {
		if off != 0 {
			parts = append(parts, fmt.Sprintf("hunk %d %+d", i+1, off))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "offset: " + strings.Join(parts, ", ")
}

// FormatIssue renders one issue for listings:
//
//	F.java:50:2-52:7 NULL_POINTER [18] (2 fixes)
func FormatIssue(is *issues.Issue) string {
	r := is.TextRange
	name := is.Kind
	if is.IssueName != "" && is.IssueName != is.Kind {
		name = fmt.Sprintf("%s (%s)", is.Kind, is.IssueName)
	}
	fixes := "fixes"
	if len(is.Patches) == 1 {
		fixes = "fix"
	}
	id := ""
	if is.ID != "" {
		id = fmt.Sprintf(" [%s]", is.ID)
	}
	return fmt.Sprintf("%s:%d:%d-%d:%d %s%s (%d %s)",
		is.SourceFile, r.StartLine, r.StartColumn, r.EndLine, r.EndColumn, name, id, len(is.Patches), fixes)
}

// FormatFix renders one candidate patch of an issue.
func FormatFix(p issues.Patch) string {
	if p.Explanation == "" {
		return fmt.Sprintf("%.2f  %s", p.Score, p.Path)
	}
	return fmt.Sprintf("%.2f  %s  %s", p.Score, p.Path, p.Explanation)
}
