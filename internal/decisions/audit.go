package decisions

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	// Pure-Go SQLite driver; registers "sqlite".
	_ "modernc.org/sqlite"

	apperrors "github.com/kvit-s/fixsync/internal/errors"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS decision_audit (
	id          TEXT PRIMARY KEY,
	decided_at  TEXT NOT NULL,
	source_path TEXT NOT NULL,
	patch_path  TEXT NOT NULL,
	decision    TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_decision_audit_decided_at ON decision_audit(decided_at);
`

// Audit is the SQLite decision table.
type Audit struct {
	db *sql.DB
	mu sync.RWMutex
}

// OpenAudit opens or creates the audit database at path. Use ":memory:" in
// tests.
func OpenAudit(path string) (*Audit, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, apperrors.IoFailure("open audit database", path, err)
	}
	// One connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, apperrors.IoFailure("ping audit database", path, err)
	}

	if _, err := db.Exec(auditSchema); err != nil {
		db.Close()
		return nil, apperrors.IoFailure("init audit schema", path, err)
	}
	return &Audit{db: db}, nil
}

// Close releases the database connection.
func (a *Audit) Close() error {
	return a.db.Close()
}

// Save inserts one decision.
func (a *Audit) Save(e Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	const query = `
		INSERT INTO decision_audit (id, decided_at, source_path, patch_path, decision, reason)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := a.db.Exec(query, e.ID, e.At.UTC().Format(time.RFC3339Nano), e.SourcePath, e.PatchPath, e.Decision, e.Reason)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeIoFailure, "save audit entry", err)
	}
	return nil
}

// List returns decisions newest first. limit <= 0 returns all.
func (a *Audit) List(limit int) ([]Entry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	query := `
		SELECT id, decided_at, source_path, patch_path, decision, reason
		FROM decision_audit
		ORDER BY decided_at DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := a.db.Query(query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIoFailure, "list audit entries", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			decidedAt string
		)
		if err := rows.Scan(&e.ID, &decidedAt, &e.SourcePath, &e.PatchPath, &e.Decision, &e.Reason); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.At, err = time.Parse(time.RFC3339Nano, decidedAt)
		if err != nil {
			return nil, fmt.Errorf("parse decided_at: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}
