package workspace

import (
	"path"
	"path/filepath"
	"strings"
)

// NormalizePath turns a path taken from a patch header, an issue document or
// the command line into a clean, slash-separated absolute path. Backslashes
// become slashes, a leading slash before a drive letter ("/C:/src") is
// dropped, and relative paths are joined to root. The result does not depend
// on the host OS.
func NormalizePath(root, p string) string {
	p = toSlash(strings.TrimSpace(p))
	if p == "" {
		return toSlash(root)
	}
	if isAbs(p) {
		return cleanAbs(p)
	}
	return cleanAbs(path.Join(toSlash(root), p))
}

// Rel returns p relative to root in slash form, or p unchanged when p lies
// outside root.
func Rel(root, p string) string {
	r := NormalizePath("", root)
	n := NormalizePath(root, p)
	if n == r {
		return "."
	}
	prefix := strings.TrimSuffix(r, "/") + "/"
	if strings.HasPrefix(n, prefix) {
		return n[len(prefix):]
	}
	return n
}

// IsWithin reports whether p (resolved against root) lies inside root.
func IsWithin(root, p string) bool {
	rel := Rel(root, p)
	return rel == "." || (!isAbs(rel) && !strings.HasPrefix(rel, "../"))
}

// Native converts a normalized path to the host OS form for file calls.
func Native(p string) string {
	return filepath.FromSlash(p)
}

// BaseName returns the last element of a slash or backslash separated path.
func BaseName(p string) string {
	return path.Base(toSlash(p))
}

func toSlash(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if len(p) >= 3 && p[0] == '/' && hasDrive(p[1:]) {
		p = p[1:]
	}
	return p
}

func hasDrive(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isAbs(p string) bool {
	return strings.HasPrefix(p, "/") || hasDrive(p)
}

// cleanAbs cleans p, keeping a drive prefix intact.
func cleanAbs(p string) string {
	if hasDrive(p) {
		rest := path.Clean("/" + strings.TrimPrefix(p[2:], "/"))
		return p[:2] + rest
	}
	return path.Clean(p)
}
