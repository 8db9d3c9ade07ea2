package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var rootCmd = &cobra.Command{
	Use:   "memhier",
	Short: "memhier simulates a multi-level cache hierarchy over a DRAM controller",
	Long: `memhier drives a synthetic address stream through a 1-3 level ` +
		`write-back cache hierarchy and a DRAM controller with a configurable ` +
		`request scheduler and row policy, then reports statistics.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Variables from a .env file, if present, are loaded into the
		// process environment. No flag reads environment variables.
		_ = godotenv.Load()
	},
}

// Execute runs the root command.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}
}
