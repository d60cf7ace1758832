package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var version = "v0.1.0-dev"

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "patchformer %s (%s)\n", version, runtime.Version())
		},
	}
}
