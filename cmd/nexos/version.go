package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/nexos/internal/version"
)

// versionCmd prints build metadata.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
		fmt.Fprintf(cmd.OutOrStdout(), "Go Version: %s\n", version.GoVersion)
	},
}
