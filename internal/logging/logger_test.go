package logging

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewEmptyPathIsNop(t *testing.T) {
	l, err := New("", false)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	l.PatchApplied("F.java", "fix_1.diff", nil, nil, 0)
	if err := l.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestEventsWrittenAsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "fixsync.log")
	l, err := New(path, false)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	l.PatchApplied("src/F.java", "fix_1.diff", []string{"17"}, []int{0, 2}, 1)
	l.SiblingRewriteFailed(errors.New("permission denied"))
	l.Debug("hidden at info level")
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2:\n%s", len(lines), data)
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 1 is not JSON: %v", err)
	}
	if first["msg"] != "patch applied" {
		t.Errorf("msg = %v, want patch applied", first["msg"])
	}
	if first["patch"] != "fix_1.diff" {
		t.Errorf("patch = %v, want fix_1.diff", first["patch"])
	}
	if !strings.Contains(lines[1], "permission denied") {
		t.Errorf("warning line = %s, want error text", lines[1])
	}
}
