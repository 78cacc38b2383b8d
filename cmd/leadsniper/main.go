package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "leadsniper",
	Short: "Qualify social postings into sales leads and sell access to the best ones",
	Long: `leadsniper runs raw postings through a four-stage qualification pipeline
(signals, research, pitch, audit) and gates leads scoring at or above the
approval threshold behind a payment step.

Configuration comes from the environment (optionally seeded from .env) and the
YAML file named by LEADSNIPER_CONFIG.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, processCmd, validateCmd, mcpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
