package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version info set by ldflags at build time
var (
	version    = "dev"
	commitHash = "dev"
	commitDate = "unknown"
	buildDate  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "fixsync %s-%s-%s (built %s)\n", version, commitDate, commitHash, buildDate)
	},
}
