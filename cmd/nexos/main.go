package main

import (
	"os"
	"runtime"

	"github.com/aatumaykin/nexos/internal/version"
)

var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func init() {
	version.SetInfo(Version, BuildTime, GitCommit, runtime.Version())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
