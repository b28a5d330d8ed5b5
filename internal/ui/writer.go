package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Color definitions for consistent UI
var (
	// Gray for details and context lines
	grayColor = color.New(color.FgWhite, color.Faint)

	// Red for errors and removed lines
	errorColor = color.New(color.FgRed)

	// Yellow for warnings
	warnColor = color.New(color.FgYellow)

	// Green for completed actions and added lines
	okColor = color.New(color.FgGreen)

	// Cyan for hunk headers
	hunkColor = color.New(color.FgCyan)

	// Bold for file headers
	headerColor = color.New(color.Bold)
)

// Writer provides formatted output with consistent prefixes and optional colors.
type Writer struct {
	quiet    bool
	jsonMode bool      // Output structured JSON instead of formatted text
	stderr   io.Writer // stderr output (defaults to os.Stderr)
	stdout   io.Writer // stdout output (defaults to os.Stdout)
}

// NewWriter creates a Writer on the process's standard streams.
func NewWriter() *Writer {
	return &Writer{stderr: os.Stderr, stdout: os.Stdout}
}

// NewWriterTo creates a Writer on the given streams. Colors are decided by
// fatih/color (disabled when the streams are not terminals).
func NewWriterTo(stdout, stderr io.Writer) *Writer {
	return &Writer{stderr: stderr, stdout: stdout}
}

// SetQuiet suppresses everything except results and errors.
func (w *Writer) SetQuiet(quiet bool) {
	w.quiet = quiet
}

// SetJSONMode enables or disables JSON output mode.
func (w *Writer) SetJSONMode(jsonMode bool) {
	w.jsonMode = jsonMode
}

// IsJSONMode returns true if JSON mode is enabled.
func (w *Writer) IsJSONMode() bool {
	return w.jsonMode
}

// JSON writes v as indented JSON to stdout.
func (w *Writer) JSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w.stdout, string(data))
	return err
}

// Info prints an info message with [info] prefix in gray.
func (w *Writer) Info(msg string) {
	if w.quiet || w.jsonMode {
		return
	}
	grayColor.Fprintf(w.stderr, "[info] %s\n", msg)
}

// Warn prints a warning message with [warn] prefix in yellow.
func (w *Writer) Warn(msg string) {
	if w.jsonMode {
		return
	}
	warnColor.Fprintf(w.stderr, "[warn] %s\n", msg)
}

// Error prints an error message with [error] prefix in red. Errors are
// printed even in quiet and JSON mode.
func (w *Writer) Error(msg string) {
	errorColor.Fprintf(w.stderr, "[error] %s\n", msg)
}

// Success prints a completed action in green.
func (w *Writer) Success(msg string) {
	if w.jsonMode {
		return
	}
	okColor.Fprintln(w.stdout, msg)
}

// Line prints plain text to stdout.
func (w *Writer) Line(msg string) {
	if w.jsonMode {
		return
	}
	fmt.Fprintln(w.stdout, msg)
}

// Detail prints an indented gray line.
func (w *Writer) Detail(msg string) {
	if w.quiet || w.jsonMode {
		return
	}
	grayColor.Fprintf(w.stdout, "  %s\n", msg)
}

// Diff prints unified-diff text with added lines green, removed lines red
// and hunk headers cyan.
func (w *Writer) Diff(text string) {
	if w.jsonMode {
		return
	}
	for _, line := range splitLines(text) {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			headerColor.Fprintln(w.stdout, line)
		case strings.HasPrefix(line, "@@"):
			hunkColor.Fprintln(w.stdout, line)
		case strings.HasPrefix(line, "+"):
			okColor.Fprintln(w.stdout, line)
		case strings.HasPrefix(line, "-"):
			errorColor.Fprintln(w.stdout, line)
		default:
			fmt.Fprintln(w.stdout, line)
		}
	}
}

// splitLines splits text into lines, dropping one trailing newline.
func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
