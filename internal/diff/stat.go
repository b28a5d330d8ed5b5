package diff

import (
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	"github.com/pmezard/go-difflib/difflib"

	apperrors "github.com/kvit-s/fixsync/internal/errors"
)

// Stats summarises a patch for listings.
type Stats struct {
	Hunks   int
	Added   int
	Deleted int
}

// Stat counts hunks and changed lines in unified-diff text. It is a summary
// only; Parse is the authority on whether a patch is well formed.
func Stat(text string) (Stats, error) {
	files, _, err := gitdiff.Parse(strings.NewReader(text))
	if err != nil {
		return Stats{}, apperrors.Wrap(apperrors.CodeMalformedPatch, "reading diff statistics", err)
	}

	var s Stats
	for _, f := range files {
		for _, frag := range f.TextFragments {
			s.Hunks++
			s.Added += int(frag.LinesAdded)
			s.Deleted += int(frag.LinesDeleted)
		}
	}
	return s, nil
}

// UnifiedDiff renders a three-line-context diff between two versions of a
// file, used to preview what applying a patch will do.
func UnifiedDiff(oldContent, newContent, filename string) (string, error) {
	d := difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldContent),
		B:        difflib.SplitLines(newContent),
		FromFile: filename,
		ToFile:   filename,
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(d)
}
