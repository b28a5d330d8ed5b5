package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AccessType defines the type of file access being requested
type AccessType int

const (
	AccessRead AccessType = iota
	AccessWrite
)

// PermissionResult indicates the result of a permission check
type PermissionResult int

const (
	PermissionGranted PermissionResult = iota
	PermissionReadOnly
	PermissionDenied
)

// CheckPathPermission decides whether the engine may read or rewrite path.
// Sources and patches inside the project root are always allowed; outside it
// only the configured allow lists apply. Denied paths win over everything.
func (c *Config) CheckPathPermission(path string, accessType AccessType) (PermissionResult, error) {
	absPath := c.resolve(path)

	for _, denied := range c.Project.DeniedPaths {
		if within(absPath, c.resolve(denied)) {
			return PermissionDenied, fmt.Errorf("path is in denied_paths: %s", path)
		}
	}

	if within(absPath, c.Project.Root) || within(absPath, c.Patches.Dir) || within(absPath, c.State.Dir) {
		return PermissionGranted, nil
	}

	for _, allowed := range c.Project.AllowedPaths {
		if within(absPath, c.resolve(allowed)) {
			return PermissionGranted, nil
		}
	}

	for _, allowedRead := range c.Project.AllowedReadPaths {
		if within(absPath, c.resolve(allowedRead)) {
			if accessType == AccessWrite {
				return PermissionReadOnly, fmt.Errorf("path is read-only: %s", path)
			}
			return PermissionGranted, nil
		}
	}

	return PermissionDenied, fmt.Errorf("path outside project: %s", path)
}

// within reports whether p is dir or lies under it.
func within(p, dir string) bool {
	p = filepath.Clean(p)
	dir = filepath.Clean(dir)
	return p == dir || strings.HasPrefix(p, dir+string(filepath.Separator))
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
