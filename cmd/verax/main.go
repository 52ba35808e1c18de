// Package main implements the verax CLI: a headless-browser, evidence-first
// verifier for whether interactive elements actually do anything.
//
// File index:
//   - main.go     - entry point, rootCmd, logger init
//   - cmd_run.go  - runCmd, flag/env wiring, RESULT/REASON/ACTION output
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"verax/internal/logging"
)

var (
	debugFlag bool
	logger    *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "verax",
	Short: "verax - evidence-first verifier for headless web apps",
	Long: `verax drives a real headless browser against a running web app, attempts
every interactive element a source tree and the live DOM expose, and reports
-- with evidence -- which ones produced no observable effect.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(debugFlag)
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging and EVIDENCE/logs/debug.json")
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Only cobra's own flag-parsing errors (unknown flag, bad type)
		// reach here; runCmd's RunE always exits itself so the exit code
		// set stays closed (spec.md §6) rather than cobra's default 1.
		fmt.Fprintln(os.Stderr, err)
		os.Exit(64)
	}
}
