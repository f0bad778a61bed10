// Package cli implements the cachectl commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the cachectl root command.
func NewRootCmd(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "cachectl",
		Short:         "Exercise cachekit caches under a configurable workload",
		Long:          `cachectl builds one of the cachekit cache variants, drives it with a concurrent get/put/compute workload and reports stats, health and telemetry.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	bindFlags(rootCmd.PersistentFlags())

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cachectl %s\n", version)
			fmt.Fprintf(out, "commit: %s\n", commit)
			fmt.Fprintf(out, "built: %s\n", buildDate)
		},
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newBenchCmd(version))
	rootCmd.AddCommand(newServeCmd(version))
	return rootCmd
}

// configFor loads the configuration for cmd from its flags, the
// environment and the config file.
func configFor(cmd *cobra.Command) (Config, error) {
	v, err := newViper(cmd.Flags())
	if err != nil {
		return Config{}, err
	}
	return loadConfig(v)
}
