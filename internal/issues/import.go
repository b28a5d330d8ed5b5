package issues

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/kvit-s/fixsync/internal/errors"
	"github.com/kvit-s/fixsync/internal/workspace"
)

// maxConcurrentReads bounds how many issue documents are decoded at once.
const maxConcurrentReads = 8

// ImportResult summarises an Import.
type ImportResult struct {
	Documents int
	Issues    int
	Replaced  int
}

// ReadList reads a list-file: one issue document path per line, blank lines
// ignored. Relative paths resolve against root.
func ReadList(listFile, root string) ([]string, error) {
	data, err := os.ReadFile(listFile)
	if err != nil {
		return nil, apperrors.IoFailure("read list file", listFile, err)
	}

	var paths []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		paths = append(paths, workspace.NormalizePath(root, line))
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.IoFailure("read list file", listFile, err)
	}
	return paths, nil
}

// DocumentSource is the SourceFile tag for issues read from docPath: the
// document's base name without ".json".
func DocumentSource(docPath string) string {
	return strings.TrimSuffix(workspace.BaseName(docPath), ".json")
}

// Import decodes the given issue documents concurrently and merges them into
// the store in list order. Issues previously imported from a document with the
// same base name are replaced. Any read or decode failure aborts the import
// with the store unchanged.
func (s *Store) Import(ctx context.Context, docPaths []string) (ImportResult, error) {
	decoded := make([]map[string][]*Issue, len(docPaths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)
	for i, p := range docPaths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(workspace.Native(p))
			if err != nil {
				return apperrors.IoFailure("read issue document", p, err)
			}
			doc, err := Decode(data)
			if err != nil {
				return apperrors.Wrap(apperrors.CodeIoFailure, "parse issue document", err).WithPath(p)
			}
			decoded[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ImportResult{}, err
	}

	var res ImportResult
	for i, p := range docPaths {
		source := DocumentSource(p)
		res.Replaced += s.DropSource(source)
		for kind, list := range decoded[i] {
			for _, is := range list {
				is.Kind = kind
				is.SourceFile = source
				s.byKind[kind] = append(s.byKind[kind], is)
				res.Issues++
			}
		}
		res.Documents++
	}
	s.sort()
	return res, nil
}
