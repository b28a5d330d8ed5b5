// Package cli is the fixsync command line: a thin cobra layer over the
// review engine.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kvit-s/fixsync/internal/config"
	apperrors "github.com/kvit-s/fixsync/internal/errors"
	"github.com/kvit-s/fixsync/internal/logging"
	"github.com/kvit-s/fixsync/internal/review"
	"github.com/kvit-s/fixsync/internal/ui"
	"github.com/kvit-s/fixsync/internal/workspace"
)

// app is the per-invocation state shared by subcommands.
type app struct {
	cfg    *config.Config
	log    *logging.Logger
	engine *review.Engine
	lock   *workspace.Lock
	out    *ui.Writer
}

var current = &app{out: ui.NewWriter()}

var rootCmd = &cobra.Command{
	Use:   "fixsync",
	Short: "Apply, decline and undo generated fixes while keeping issue ranges in sync",
	Long: `fixsync reviews machine-generated patches against a project. Applying a
patch rewrites the source, shifts the ranges of the remaining issues and the
hunk headers of the other pending patches for that file, and records the
decision. The last apply can be undone exactly.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		current.close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultFileName, "path to config file")
	rootCmd.PersistentFlags().Bool("json", false, "print results as JSON")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "print results and errors only")

	rootCmd.AddCommand(versionCmd, importCmd, listCmd, showCmd, nextCmd, prevCmd,
		applyCmd, declineCmd, undoCmd, locateCmd, statusCmd, historyCmd)
}

// Execute runs the root command and reports a failure on stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		current.out.Error(err.Error())
	}
	current.close()
	return err
}

// ExitCode maps an error to the process exit status: 2 for configuration
// problems, 3 when the project is locked, 1 otherwise.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case apperrors.IsCode(err, apperrors.CodeInvalidConfig):
		return 2
	case isLocked(err):
		return 3
	default:
		return 1
	}
}

// setup loads configuration, takes the project lock and opens the engine.
// The version command needs none of it.
func setup(cmd *cobra.Command, args []string) error {
	if cmd == versionCmd {
		return nil
	}

	jsonMode, _ := cmd.Flags().GetBool("json")
	quiet, _ := cmd.Flags().GetBool("quiet")
	current.out.SetJSONMode(jsonMode)
	current.out.SetQuiet(quiet)

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	current.cfg = cfg

	current.log, err = logging.New(cfg.Log.Path, cfg.Log.Development)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}

	current.lock, err = workspace.AcquireLock(cfg.State.Dir)
	if err != nil {
		return err
	}

	current.engine, err = review.New(cfg, current.log)
	if err != nil {
		return err
	}
	return nil
}

func (a *app) close() {
	if a.engine != nil {
		if err := a.engine.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "close engine: %v\n", err)
		}
		a.engine = nil
	}
	if a.lock != nil {
		a.lock.Release()
		a.lock = nil
	}
	if a.log != nil {
		a.log.Close()
		a.log = nil
	}
}
