/*
main.go - Application entry point

PURPOSE:
  Command-line entry point for the TOIL engine. "serve" runs the HTTP API;
  "fortnight" and "day" evaluate a schedule file offline.

STARTUP SEQUENCE (serve):
  1. Load .env and the YAML config
  2. Initialize SQLite store (and Redis when configured)
  3. Create API handler with dependencies
  4. Start the prune scheduler and the metrics server
  5. Start HTTP server with graceful shutdown

COMMANDS:
  toil-engine serve     [--config path] [--port n] [--db path]
  toil-engine fortnight --schedule file.json [--fte 0.8]
  toil-engine day       --schedule file.json --date 2025-03-03 [--anchor 2024-01-01]

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Wait for in-flight TOIL computations
  4. Close database connection

ENVIRONMENT:
  TOIL_CONFIG_PATH  Config file used when --config is not given
  Any ${VAR} in the YAML file is expanded from the environment (.env included).

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration file format
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "toil-engine",
	Short: "Work-schedule hours and TOIL accrual engine",
	Long: `toil-engine computes scheduled hours from fortnightly work schedules,
classifies logged days against them and accrues time off in lieu (TOIL).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fortnightCmd)
	rootCmd.AddCommand(dayCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
