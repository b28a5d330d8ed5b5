package review

import (
	"context"

	apperrors "github.com/kvit-s/fixsync/internal/errors"
	"github.com/kvit-s/fixsync/internal/issues"
)

// Import merges the issue documents named by the configured list file into
// the store and persists it. A failing document leaves the store unchanged.
func (e *Engine) Import(ctx context.Context) (issues.ImportResult, error) {
	listFile := e.cfg.Issues.ListFile
	if listFile == "" {
		return issues.ImportResult{}, apperrors.New(apperrors.CodeInvalidConfig, "issues.list_file is not set")
	}
	docs, err := issues.ReadList(listFile, e.cfg.Project.Root)
	if err != nil {
		return issues.ImportResult{}, err
	}
	return e.ImportDocuments(ctx, listFile, docs)
}

// ImportDocuments merges the given issue documents into the store. source
// names where the list came from, for the log.
func (e *Engine) ImportDocuments(ctx context.Context, source string, docs []string) (issues.ImportResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.store.Clone()
	res, err := next.Import(ctx, docs)
	if err != nil {
		return issues.ImportResult{}, err
	}
	if err := e.saveStore(next); err != nil {
		return issues.ImportResult{}, err
	}
	e.store = next

	e.log.ImportCompleted(source, res.Documents, res.Issues, res.Replaced)
	return res, nil
}
