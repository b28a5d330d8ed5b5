package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name string
		root string
		in   string
		want string
	}{
		{"relative", "/proj", "src/Foo.java", "/proj/src/Foo.java"},
		{"dot segments", "/proj", "./src/../lib/A.java", "/proj/lib/A.java"},
		{"absolute", "/proj", "/other/B.java", "/other/B.java"},
		{"backslashes", "/proj", `src\main\C.java`, "/proj/src/main/C.java"},
		{"windows drive", "/proj", `C:\work\D.java`, "C:/work/D.java"},
		{"leading slash before drive", "/proj", "/c:/work/E.java", "c:/work/E.java"},
		{"windows root", `C:\proj`, "src/F.java", "C:/proj/src/F.java"},
		{"empty", "/proj", "", "/proj"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePath(tt.root, tt.in); got != tt.want {
				t.Errorf("NormalizePath(%q, %q) = %q, want %q", tt.root, tt.in, got, tt.want)
			}
		})
	}
}

func TestRelAndIsWithin(t *testing.T) {
	if got := Rel("/proj", "/proj/src/Foo.java"); got != "src/Foo.java" {
		t.Errorf("Rel() = %q, want src/Foo.java", got)
	}
	if got := Rel("/proj", "/projector/x"); got != "/projector/x" {
		t.Errorf("Rel() = %q, want unchanged path", got)
	}
	if !IsWithin("/proj", "src/a") {
		t.Error("IsWithin(relative) = false, want true")
	}
	if IsWithin("/proj", "../outside") {
		t.Error("IsWithin(../outside) = true, want false")
	}
}

func TestBaseName(t *testing.T) {
	if got := BaseName(`out\patches\fix_1.diff`); got != "fix_1.diff" {
		t.Errorf("BaseName() = %q", got)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "file.txt")

	if err := WriteFileAtomic(target, []byte("one\n")); err != nil {
		t.Fatalf("WriteFileAtomic() error: %v", err)
	}
	if err := os.Chmod(target, 0600); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(target, []byte("two\n")); err != nil {
		t.Fatalf("WriteFileAtomic() overwrite error: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "two\n" {
		t.Errorf("content = %q, want %q", data, "two\n")
	}
	info, _ := os.Stat(target)
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600 preserved", info.Mode().Perm())
	}
	entries, _ := os.ReadDir(filepath.Dir(target))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
	if !FileExists(target) || FileExists(dir) {
		t.Error("FileExists() wrong")
	}
}
