package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kvit-s/fixsync/internal/apply"
	apperrors "github.com/kvit-s/fixsync/internal/errors"
)

// DefaultFileName is looked up in the working directory when no --config
// flag is given.
const DefaultFileName = "fixsync.yaml"

// RootEnv overrides project.root.
const RootEnv = "FIXSYNC_PROJECT_ROOT"

type Config struct {
	Project struct {
		Root             string   `yaml:"root"`
		AllowedPaths     []string `yaml:"allowed_paths"`      // writable paths outside root
		AllowedReadPaths []string `yaml:"allowed_read_paths"` // readable paths outside root
		DeniedPaths      []string `yaml:"denied_paths"`
	} `yaml:"project"`

	Patches struct {
		Dir string `yaml:"dir"` // where generated patches live; patch paths in issues are relative to it
	} `yaml:"patches"`

	Issues IssuesConfig `yaml:"issues"`

	Apply struct {
		Mode       string `yaml:"mode"`        // "whitespace" (default) or "exact"
		FuzzWindow int    `yaml:"fuzz_window"` // lines a hunk may drift (default: 100)
	} `yaml:"apply"`

	Decisions struct {
		LogPath string `yaml:"log_path"` // default: <patches.dir>/user_decisions.txt
		AuditDB string `yaml:"audit_db"` // optional SQLite audit database
	} `yaml:"decisions"`

	State struct {
		Dir string `yaml:"dir"` // snapshot, sessions and lock (default: <root>/.fixsync)
	} `yaml:"state"`

	Log struct {
		Path        string `yaml:"path"` // empty disables logging
		Development bool   `yaml:"development"`
	} `yaml:"log"`
}

// IssuesConfig locates the issue store and its inputs.
type IssuesConfig struct {
	Path       string `yaml:"path"`        // canonical store (default: <state.dir>/issues.json)
	ListFile   string `yaml:"list_file"`   // list of per-file issue documents
	RecordsDir string `yaml:"records_dir"` // per-issue <warning id>.json records, deleted on resolve
}

// Load reads the YAML file at path and fills defaults. A missing file at the
// default location is not an error: defaults alone are a valid config.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInvalidConfig, "parse config", err).WithPath(path)
		}
	case errors.Is(err, fs.ErrNotExist) && filepath.Base(path) == DefaultFileName:
	default:
		return nil, err
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file exists, rooted at root.
func Default(root string) (*Config, error) {
	var cfg Config
	cfg.Project.Root = root
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	// Environment override
	if root := os.Getenv(RootEnv); root != "" {
		c.Project.Root = root
	}

	if c.Project.Root == "" {
		c.Project.Root = "."
	}
	absRoot, err := filepath.Abs(c.Project.Root)
	if err != nil {
		return fmt.Errorf("failed to resolve project root: %w", err)
	}
	c.Project.Root = absRoot

	if c.Patches.Dir == "" {
		c.Patches.Dir = "patches"
	}
	c.Patches.Dir = c.resolve(c.Patches.Dir)

	if c.State.Dir == "" {
		c.State.Dir = ".fixsync"
	}
	c.State.Dir = c.resolve(c.State.Dir)

	if c.Issues.Path == "" {
		c.Issues.Path = filepath.Join(c.State.Dir, "issues.json")
	}
	c.Issues.Path = c.resolve(c.Issues.Path)
	if c.Issues.ListFile != "" {
		c.Issues.ListFile = c.resolve(c.Issues.ListFile)
	}
	if c.Issues.RecordsDir != "" {
		c.Issues.RecordsDir = c.resolve(c.Issues.RecordsDir)
	}

	if c.Apply.Mode == "" {
		c.Apply.Mode = "whitespace"
	}
	if c.Apply.FuzzWindow == 0 {
		c.Apply.FuzzWindow = apply.DefaultWindow
	}

	if c.Decisions.LogPath == "" {
		c.Decisions.LogPath = filepath.Join(c.Patches.Dir, "user_decisions.txt")
	}
	c.Decisions.LogPath = c.resolve(c.Decisions.LogPath)
	if c.Decisions.AuditDB != "" {
		c.Decisions.AuditDB = c.resolve(c.Decisions.AuditDB)
	}

	if c.Log.Path != "" {
		c.Log.Path = c.resolve(c.Log.Path)
	}
	return nil
}

// resolve makes p absolute against the project root.
func (c *Config) resolve(p string) string {
	p = expandPath(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.Project.Root, p)
}

// Validate rejects values the engine cannot use.
func (c *Config) Validate() error {
	if _, err := apply.ParseMode(c.Apply.Mode); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidConfig, "apply.mode", err)
	}
	if c.Apply.FuzzWindow < 0 {
		return apperrors.New(apperrors.CodeInvalidConfig, fmt.Sprintf("apply.fuzz_window must be >= 0, got %d", c.Apply.FuzzWindow))
	}
	return nil
}

// ApplyOptions converts the apply section into applier options.
func (c *Config) ApplyOptions() apply.Options {
	mode, _ := apply.ParseMode(c.Apply.Mode)
	return apply.Options{Mode: mode, Window: c.Apply.FuzzWindow}
}

// SessionsPath is where the session registry persists open sessions.
func (c *Config) SessionsPath() string {
	return filepath.Join(c.State.Dir, "sessions.jsonl")
}
