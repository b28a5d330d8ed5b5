package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kvit-s/fixsync/internal/decisions"
	"github.com/kvit-s/fixsync/internal/workspace"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show open review sessions and whether an undo is available",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent decisions from the audit database",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "number of decisions to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	sessions := current.engine.Sessions()
	undo := current.engine.UndoAvailable()

	out := current.out
	if out.IsJSONMode() {
		return out.JSON(map[string]any{"sessions": sessions, "undo_available": undo})
	}
	if len(sessions) == 0 {
		out.Line("No open review sessions.")
	}
	for _, s := range sessions {
		out.Line(fmt.Sprintf("%-10s %s <- %s", s.State, s.SourcePath, s.PatchPath))
	}
	if undo {
		out.Detail("undo available")
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	entries, err := current.engine.AuditTrail(limit)
	if err != nil {
		return err
	}
	out := current.out
	if current.cfg.Decisions.AuditDB == "" {
		out.Warn("decisions.audit_db is not configured; see " + current.cfg.Decisions.LogPath)
		return nil
	}
	if out.IsJSONMode() {
		return out.JSON(entries)
	}
	for _, e := range entries {
		out.Line(decisions.FormatLine(e))
	}
	return nil
}

func isLocked(err error) bool {
	return errors.Is(err, workspace.ErrLocked)
}
