package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "driveit",
	Short:        "Drive-It path selection engine",
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }
