package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kvit-s/fixsync/internal/review"
	"github.com/kvit-s/fixsync/internal/ui"
)

var showCmd = &cobra.Command{
	Use:   "show <patch>",
	Short: "Preview a patch and open its review session",
	Long: `Preview a patch: the change it will make to its source (which can differ
from the patch text when hunks have drifted or whitespace differs), and the
issue it fixes. A source has at most one review session; showing another
patch of the same source moves that session to it.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

var nextCmd = &cobra.Command{
	Use:   "next <source>",
	Short: "Move the source's review session to its next pending patch",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runNavigate(cmd, args[0], 1) },
}

var prevCmd = &cobra.Command{
	Use:   "prev <source>",
	Short: "Move the source's review session to its previous pending patch",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runNavigate(cmd, args[0], -1) },
}

var applyCmd = &cobra.Command{
	Use:   "apply <patch>",
	Short: "Apply a patch and resolve the issue it fixes",
	Args:  cobra.ExactArgs(1),
	RunE:  runApply,
}

var declineCmd = &cobra.Command{
	Use:   "decline <patch>",
	Short: "Decline a patch without changing the source",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecline,
}

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Revert the last applied patch",
	Args:  cobra.NoArgs,
	RunE:  runUndo,
}

func init() {
	for _, c := range []*cobra.Command{applyCmd, declineCmd, undoCmd} {
		c.Flags().StringP("reason", "r", "", "reason recorded in the decision log")
	}
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runShow(cmd *cobra.Command, args []string) error {
	pv, err := current.engine.Open(contextOf(cmd), args[0])
	if err != nil {
		return err
	}
	printPreview(pv)
	return nil
}

func runNavigate(cmd *cobra.Command, source string, step int) error {
	pv, err := current.engine.Navigate(contextOf(cmd), source, step)
	if err != nil {
		return err
	}
	printPreview(pv)
	return nil
}

func printPreview(pv *review.Preview) {
	out := current.out
	if out.IsJSONMode() {
		out.JSON(pv)
		return
	}
	if pv.Revealed {
		out.Info("source already under review; session reused")
	}
	if pv.Issue != nil {
		out.Line(ui.FormatIssue(pv.Issue))
	}
	out.Line(fmt.Sprintf("%s  %s", pv.PatchPath, ui.FormatStats(pv.Stats)))
	if off := ui.FormatOffsets(pv.Offsets); off != "" {
		out.Detail(off)
	}
	out.Diff(pv.Diff)
}

func runApply(cmd *cobra.Command, args []string) error {
	reason, _ := cmd.Flags().GetString("reason")
	res, err := current.engine.Apply(contextOf(cmd), args[0], reason)
	if err != nil {
		return err
	}

	out := current.out
	printWarnings(res.Warnings)
	if out.IsJSONMode() {
		return out.JSON(res)
	}
	out.Success(fmt.Sprintf("applied %s to %s", res.PatchPath, res.SourcePath))
	if off := ui.FormatOffsets(res.Offsets); off != "" {
		out.Detail(off)
	}
	if len(res.Resolved) > 0 {
		out.Detail(fmt.Sprintf("resolved issues: %v", res.Resolved))
	}
	for _, s := range res.Siblings {
		out.Detail("re-anchored " + s)
	}
	return nil
}

func runDecline(cmd *cobra.Command, args []string) error {
	reason, _ := cmd.Flags().GetString("reason")
	res, err := current.engine.Decline(contextOf(cmd), args[0], reason)
	if err != nil {
		return err
	}

	out := current.out
	printWarnings(res.Warnings)
	if out.IsJSONMode() {
		return out.JSON(res)
	}
	out.Success(fmt.Sprintf("declined %s", res.PatchPath))
	if len(res.Removed) > 0 {
		out.Detail(fmt.Sprintf("issues without remaining fixes removed: %v", res.Removed))
	}
	return nil
}

func runUndo(cmd *cobra.Command, args []string) error {
	reason, _ := cmd.Flags().GetString("reason")
	res, err := current.engine.Undo(contextOf(cmd), reason)
	if err != nil {
		return err
	}

	out := current.out
	printWarnings(res.Warnings)
	if out.IsJSONMode() {
		return out.JSON(res)
	}
	out.Success(fmt.Sprintf("reverted %s on %s", res.PatchPath, res.SourcePath))
	for _, s := range res.Siblings {
		out.Detail("restored header of " + s)
	}
	return nil
}

func printWarnings(warnings []error) {
	for _, w := range warnings {
		current.out.Warn(w.Error())
	}
}
