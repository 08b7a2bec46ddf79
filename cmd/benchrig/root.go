package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/benchrig/benchrig/internal/logging"
	"github.com/benchrig/benchrig/pkg/cli"
)

var rootCmd = &cobra.Command{
	Use:   "benchrig",
	Short: "benchrig inspects station configuration and serves bench state",
	Long: `benchrig is the companion tool of station binaries built on the benchrig
library. It resolves configuration cascades and lookup tables, serves the
state relay for UI development and reads stored run reports.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().String("dir", ".", "Configuration root directory")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn or error")
}

func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	raw, _ := cmd.Flags().GetString("log-level")
	level, err := logging.ParseLevel(raw)
	if err != nil {
		return nil, err
	}
	return logging.NewWithFormat(cmd.ErrOrStderr(), level, logging.FormatText), nil
}
