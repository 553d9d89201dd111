// Researchd is an iterative deep-research daemon. It decomposes
// questions into subqueries, retrieves evidence from a local knowledge
// base or the web, reflects until the evidence converges, and answers
// with sentence-level citations.
//
// Usage:
//
//	# Start the HTTP server
//	researchd serve
//
//	# Research a question from the command line
//	researchd ask "how does raft handle split votes"
//
//	# Index documents into the knowledge base
//	researchd index ./docs/*.md
//
//	# Inspect session memory
//	researchd memory recent
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build).
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// configPath is the --config persistent flag value.
var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "researchd",
	Short: "Iterative deep-research daemon",
	Long: `researchd runs iterative research sessions: it decomposes a question
into subqueries, retrieves evidence from its knowledge base or the web,
reflects on sufficiency, and produces a cited answer.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (YAML)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "researchd %s (commit %s, built %s)\n", version, gitCommit, buildDate)
	},
}
