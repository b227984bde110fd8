// Mentord is a confidence-gated math problem-solving daemon.
//
// Every pipeline stage reports a confidence score; when a stage falls
// below its threshold the run pauses and waits for a human correction
// instead of guessing. The daemon exposes the pipeline over HTTP, and
// the solve subcommand drives it interactively from the terminal.
//
// Usage:
//
//	# Start the HTTP server with defaults
//	mentord serve
//
//	# Solve one problem interactively
//	mentord solve "solve x^2 - 5x + 6 = 0"
//
//	# Index reference material into the knowledge base
//	mentord ingest ./kb
//
// Configuration is loaded from ~/.config/mentord/config.yaml, then
// overridden by MENTORD_* environment variables. See internal/config.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// configPath is the --config flag, empty means the default location.
var configPath string

var rootCmd = &cobra.Command{
	Use:   "mentord",
	Short: "Confidence-gated math problem-solving pipeline",
	Long: `mentord parses, routes, solves, verifies and explains math problems.
Each stage is gated on a confidence threshold: uncertain output pauses
the run for a human correction rather than compounding a guess.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/mentord/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mentord by Fyrsmith Labs\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
