// Package decisions records every accept, decline and undo: one human-readable
// line per decision in the decision log, and optionally a row in a SQLite
// audit table.
package decisions

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/kvit-s/fixsync/internal/errors"
)

// Decision values written to the log.
const (
	Applied       = "applied"
	Declined      = "declined"
	UndoRequested = "Undo was requested by user."
)

// Entry is one recorded decision.
type Entry struct {
	ID         string
	At         time.Time
	SourcePath string
	PatchPath  string
	Decision   string
	Reason     string
}

// FormatLine renders e as a decision log line (without the line feed):
//
//	2024/3/5 9:7 == src/F.java original File <-> out/fix_1.diff patch, decision: applied, reason: ...
func FormatLine(e Entry) string {
	at := e.At
	stamp := fmt.Sprintf("%d/%d/%d %d:%d", at.Year(), int(at.Month()), at.Day(), at.Hour(), at.Minute())
	return fmt.Sprintf("%s == %s original File <-> %s patch, decision: %s, reason: %s",
		stamp, e.SourcePath, e.PatchPath, e.Decision, e.Reason)
}

// Log appends decisions to a text file and, when configured, to the audit
// database.
type Log struct {
	mu    sync.Mutex
	path  string
	audit *Audit
	now   func() time.Time
}

// NewLog returns a Log appending to path. audit may be nil.
func NewLog(path string, audit *Audit) *Log {
	return &Log{path: path, audit: audit, now: time.Now}
}

// Path returns the decision log file.
func (l *Log) Path() string { return l.path }

// Record appends one decision. The text line is written first; an audit
// failure is reported after the line is already on disk.
func (l *Log) Record(sourcePath, patchPath, decision, reason string) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := Entry{
		ID:         uuid.NewString(),
		At:         l.now(),
		SourcePath: sourcePath,
		PatchPath:  patchPath,
		Decision:   decision,
		Reason:     reason,
	}

	if l.path != "" {
		if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
			return e, apperrors.IoFailure("create decision log directory", l.path, err)
		}
		f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return e, apperrors.IoFailure("open decision log", l.path, err)
		}
		_, werr := f.WriteString(FormatLine(e) + "\n")
		cerr := f.Close()
		if werr != nil {
			return e, apperrors.IoFailure("write decision log", l.path, werr)
		}
		if cerr != nil {
			return e, apperrors.IoFailure("close decision log", l.path, cerr)
		}
	}

	if l.audit != nil {
		if err := l.audit.Save(e); err != nil {
			return e, err
		}
	}
	return e, nil
}
