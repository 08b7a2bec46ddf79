package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benchrig/benchrig"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of benchrig",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "benchrig version %s\n", strings.TrimSpace(benchrig.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
