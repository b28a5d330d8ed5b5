package main

import (
	"os"

	"github.com/kvit-s/fixsync/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
