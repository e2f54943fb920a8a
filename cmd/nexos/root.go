package main

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "nexos",
	Short: "Nexos - task orchestration core",
	Long: `Nexos accepts natural-language tasks, screens them for security risk,
and routes each one either to a sandboxed shell script on a local worker
pool or to a remote LLM provider.`,
	Version: Version,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(submitCmd)
}
