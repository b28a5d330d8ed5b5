// Package logging wraps zap with the structured events fixsync emits.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides structured logging for engine operations.
type Logger struct {
	zap  *zap.Logger
	file *os.File
}

// New creates a Logger that appends JSON lines to logPath.
// If logPath is empty, logging is disabled.
// If development is true, the development encoder config and debug level are used.
func New(logPath string, development bool) (*Logger, error) {
	if logPath == "" {
		return Nop(), nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, err
	}
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	var encoderConfig zapcore.EncoderConfig
	level := zapcore.InfoLevel
	if development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		level = zapcore.DebugLevel
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(logFile),
		level,
	)

	return &Logger{zap: zap.New(core), file: logFile}, nil
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

// Close syncs the logger and closes its file.
func (l *Logger) Close() error {
	_ = l.zap.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// PatchApplied logs a successful apply.
func (l *Logger) PatchApplied(source, patch string, removed []string, offsets []int, siblings int) {
	l.zap.Info("patch applied",
		zap.String("source", source),
		zap.String("patch", patch),
		zap.Strings("resolved_warnings", removed),
		zap.Ints("hunk_offsets", offsets),
		zap.Int("siblings_rewritten", siblings),
	)
}

// PatchDeclined logs a declined patch.
func (l *Logger) PatchDeclined(source, patch, reason string) {
	l.zap.Info("patch declined",
		zap.String("source", source),
		zap.String("patch", patch),
		zap.String("reason", reason),
	)
}

// UndoPerformed logs a restored snapshot.
func (l *Logger) UndoPerformed(source, patch string, siblings int) {
	l.zap.Info("undo performed",
		zap.String("source", source),
		zap.String("patch", patch),
		zap.Int("siblings_restored", siblings),
	)
}

// SiblingRewriteFailed logs a sibling patch whose header could not be written.
func (l *Logger) SiblingRewriteFailed(err error) {
	l.zap.Warn("sibling rewrite failed", zap.Error(err))
}

// ImportCompleted logs a finished list-file import.
func (l *Logger) ImportCompleted(listFile string, documents, issues, replaced int) {
	l.zap.Info("import completed",
		zap.String("list_file", listFile),
		zap.Int("documents", documents),
		zap.Int("issues", issues),
		zap.Int("replaced", replaced),
	)
}

// Error logs an error.
func (l *Logger) Error(msg string, err error) {
	l.zap.Error(msg, zap.Error(err))
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.zap.Info(msg, fields...)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.zap.Debug(msg, fields...)
}
