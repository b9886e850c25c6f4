// Package cmd wires the photon-sync CLI.
package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/koalasec/photon-sync/internal/fetch"
	"github.com/koalasec/photon-sync/internal/scheduler"
)

var (
	// Global flags
	outputFormat string
	configPath   string
)

// exitTempFail is EX_TEMPFAIL from sysexits.h. Supervisors treat it as a
// transient failure and restart the container.
const exitTempFail = 75

func Execute(version, commit, date string) error {
	rootCmd := &cobra.Command{
		Use:   "photon-sync",
		Short: "Dataset lifecycle manager for the photon geocoder",
		Long: `photon-sync keeps a photon search index up to date.

It downloads dataset snapshots from a mirror, verifies and installs them
atomically, and manages the photon service process across updates.`,
		Version:      version,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, yaml")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (TOML, YAML, or JSON)")

	// Add subcommands
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newUpdateCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newVersionCmd(version, commit, date))
	rootCmd.AddCommand(newCompletionCmd())

	// Register completion function for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})

	return rootCmd.Execute()
}

// ExitCode maps an error returned by Execute to a process exit status. A
// failed mandatory first download and an exhausted disk both exit with
// EX_TEMPFAIL so the supervisor retries instead of giving up.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var firstRun *scheduler.FirstRunError
	if errors.As(err, &firstRun) {
		return exitTempFail
	}
	var space *fetch.InsufficientSpaceError
	if errors.As(err, &space) {
		return exitTempFail
	}
	return 1
}
