// Package errors provides the coded error taxonomy used across fixsync.
//
// Codes follow the format {domain}.{error} and are stable, so callers (the CLI,
// or an editor integration) can branch on them without parsing messages.
package errors

import (
	"errors"
	"fmt"
)

const (
	CodeMalformedPatch      = "patch.malformed"       // Unparsable unified diff
	CodeHunkMismatch        = "patch.hunk_mismatch"   // Content drifted beyond tolerance
	CodeAlreadyApplied      = "patch.already_applied" // Post-image already present
	CodeSourceNotFound      = "source.not_found"      // Patched source file missing
	CodeIssueNotFound       = "issue.not_found"       // No issue references the patch
	CodeNoSnapshotAvailable = "undo.no_snapshot"      // Nothing to undo
	CodeIoFailure           = "io.failure"            // Read or write failed
	CodeSessionConflict     = "session.conflict"      // Source already under review with another patch
	CodeInvalidConfig       = "config.invalid"        // Configuration value rejected
)

// CodedError wraps an error with a stable code. Path names the patch or source
// file the failure concerns; Hunk is the zero-based hunk index for
// hunk-level failures and -1 otherwise.
type CodedError struct {
	Code    string
	Message string
	Path    string
	Hunk    int
	Cause   error
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", e.Path, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a CodedError with the same code, so that
// errors.Is(err, errors.New(CodeHunkMismatch, "")) style sentinels work.
func (e *CodedError) Is(target error) bool {
	t, ok := target.(*CodedError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a CodedError with the given code and message.
func New(code, message string) *CodedError {
	return &CodedError{Code: code, Message: message, Hunk: -1}
}

// Wrap creates a CodedError wrapping an existing error.
func Wrap(code, message string, cause error) *CodedError {
	return &CodedError{Code: code, Message: message, Hunk: -1, Cause: cause}
}

// WithPath returns a copy of e naming the file it concerns.
func (e *CodedError) WithPath(path string) *CodedError {
	c := *e
	c.Path = path
	return &c
}

// GetCode extracts the error code, or "" when err carries none.
func GetCode(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code string) bool {
	return err != nil && GetCode(err) == code
}

// HunkIndex returns the failing hunk of a hunk-level error.
func HunkIndex(err error) (int, bool) {
	var coded *CodedError
	if errors.As(err, &coded) && coded.Hunk >= 0 {
		return coded.Hunk, true
	}
	return 0, false
}

// Common constructors.

// MalformedPatch creates a "patch.malformed" error.
func MalformedPatch(format string, args ...any) *CodedError {
	return New(CodeMalformedPatch, fmt.Sprintf(format, args...))
}

// HunkMismatch creates a "patch.hunk_mismatch" error for the given hunk.
func HunkMismatch(hunk int, window int) *CodedError {
	e := New(CodeHunkMismatch, fmt.Sprintf("hunk %d does not match the source within %d lines", hunk+1, window))
	e.Hunk = hunk
	return e
}

// AlreadyApplied creates a "patch.already_applied" error.
func AlreadyApplied() *CodedError {
	return New(CodeAlreadyApplied, "patch has already been applied to this source")
}

// SourceNotFound creates a "source.not_found" error.
func SourceNotFound(path string, cause error) *CodedError {
	return Wrap(CodeSourceNotFound, "source file not found", cause).WithPath(path)
}

// IssueNotFound creates an "issue.not_found" error.
func IssueNotFound(patchPath string) *CodedError {
	return New(CodeIssueNotFound, "no issue references this patch").WithPath(patchPath)
}

// NoSnapshotAvailable creates an "undo.no_snapshot" error.
func NoSnapshotAvailable() *CodedError {
	return New(CodeNoSnapshotAvailable, "no applied patch to undo")
}

// IoFailure creates an "io.failure" error.
func IoFailure(op, path string, cause error) *CodedError {
	return Wrap(CodeIoFailure, op+" failed", cause).WithPath(path)
}

// SessionConflict creates a "session.conflict" error.
func SessionConflict(sourcePath, activePatch string) *CodedError {
	return New(CodeSessionConflict, fmt.Sprintf("source is under review with patch %s", activePatch)).WithPath(sourcePath)
}
