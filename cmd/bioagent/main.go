// Package main provides the CLI entry point for the bioagent research
// assistant.
//
// bioagent drives the coordinator/specialist/QC agent engine from a
// terminal: an interactive REPL by default, or a single one-shot turn via
// --query (plain agent loop) or --complex (routed through the coordinator's
// specialist roster).
//
// # Basic Usage
//
// Start an interactive session:
//
//	bioagent --workspace ./myproject
//
// Run a single query and exit:
//
//	bioagent --query "summarize the QC metrics in sample.bam"
//
// Route a query through the coordinator's specialists:
//
//	bioagent --complex "compare expression of TP53 across these samples and find supporting literature"
//
// # Environment Variables
//
// BIOAGENT_* variables override configuration file values (model, limits,
// feature toggles, and so on). ANTHROPIC_API_KEY must be set to reach the
// model provider.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRootCmd assembles the CLI's single command: flags select one-shot
// query, one-shot complex (coordinator-routed), or interactive REPL mode.
// Separated from main() to keep it testable.
func buildRootCmd() *cobra.Command {
	var opts cliOptions

	rootCmd := &cobra.Command{
		Use:   "bioagent",
		Short: "bioagent - multi-agent bioinformatics research assistant",
		Long: `bioagent drives a coordinator/specialist/QC agent engine against a
bioinformatics workspace: file ingestion, literature search, and tool-using
specialists (pipeline, stats, literature, research, QC) behind one CLI.

With no flags, bioagent starts an interactive REPL. --query runs a single
turn through the plain agent loop; --complex routes the query through the
coordinator's specialist roster first.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCLI(cmd.Context(), opts)
		},
	}

	rootCmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML configuration file")
	rootCmd.Flags().StringVar(&opts.Query, "query", "", "run a single query through the plain agent loop and exit")
	rootCmd.Flags().StringVar(&opts.Complex, "complex", "", "run a single query through the coordinator's specialist roster and exit")
	rootCmd.Flags().StringVar(&opts.Workspace, "workspace", "", "workspace directory (overrides config/env)")
	rootCmd.Flags().StringVar(&opts.Model, "model", "", "model id (overrides config/env)")
	rootCmd.Flags().BoolVar(&opts.Quiet, "quiet", false, "suppress thinking/tool-event output, print only the final answer")
	rootCmd.Flags().StringVar(&opts.SaveSession, "save-session", "", "persist the session transcript to this file on exit")
	rootCmd.Flags().StringVar(&opts.LoadSession, "load-session", "", "resume a session transcript previously written by --save-session")

	return rootCmd
}
