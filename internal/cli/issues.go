package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kvit-s/fixsync/internal/issues"
	"github.com/kvit-s/fixsync/internal/ui"
	"github.com/kvit-s/fixsync/internal/workspace"
)

var importCmd = &cobra.Command{
	Use:   "import [document...]",
	Short: "Import issue documents into the issue store",
	Long: `Import issue documents into the issue store. Without arguments the
documents named in issues.list_file are imported. Each document is named
after the source it describes (F.java.json holds the issues of F.java);
re-importing a document replaces that source's issues.`,
	RunE: runImport,
}

var listCmd = &cobra.Command{
	Use:   "list [source]",
	Short: "List pending issues and their candidate fixes",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runList,
}

var locateCmd = &cobra.Command{
	Use:   "locate <patch>",
	Short: "Print the current range of the issue a patch fixes",
	Args:  cobra.ExactArgs(1),
	RunE:  runLocate,
}

func init() {
	listCmd.Flags().Bool("fixes", false, "list every candidate fix under its issue")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := contextOf(cmd)

	var (
		res issues.ImportResult
		err error
	)
	if len(args) == 0 {
		res, err = current.engine.Import(ctx)
	} else {
		docs := make([]string, len(args))
		for i, a := range args {
			docs[i] = workspace.NormalizePath(current.cfg.Project.Root, a)
		}
		res, err = current.engine.ImportDocuments(ctx, "command line", docs)
	}
	if err != nil {
		return err
	}

	out := current.out
	if out.IsJSONMode() {
		return out.JSON(res)
	}
	out.Success(fmt.Sprintf("imported %d issues from %d documents", res.Issues, res.Documents))
	if res.Replaced > 0 {
		out.Detail(fmt.Sprintf("%d previously imported issues replaced", res.Replaced))
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	source := ""
	if len(args) == 1 {
		source = args[0]
	}
	pending := current.engine.Pending(source)

	out := current.out
	if out.IsJSONMode() {
		return out.JSON(pending)
	}
	if len(pending) == 0 {
		out.Line("No pending issues.")
		return nil
	}
	showFixes, _ := cmd.Flags().GetBool("fixes")
	for _, is := range pending {
		out.Line(ui.FormatIssue(is))
		if showFixes {
			for _, p := range is.Patches {
				out.Detail(ui.FormatFix(p))
			}
		}
	}
	return nil
}

func runLocate(cmd *cobra.Command, args []string) error {
	is, err := current.engine.Locate(args[0])
	if err != nil {
		return err
	}
	out := current.out
	if out.IsJSONMode() {
		return out.JSON(is)
	}
	out.Line(ui.FormatIssue(is))
	return nil
}
