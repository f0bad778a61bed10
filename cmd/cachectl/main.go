// Package main provides the entry point for the cachectl CLI.
package main

import (
	"fmt"
	"os"

	"github.com/jonwraymond/cachekit/internal/cli"
)

// Build information set via ldflags
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if err := cli.NewRootCmd(version, commit, buildDate).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
