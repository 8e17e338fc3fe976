package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "nexus",
	Short: "Autonomous work orchestration engine",
	Long: `Nexus turns high-level directives into dependency-ordered task graphs,
routes each task to the best available agent, and learns from every
outcome.

Core capabilities:
- Decomposes directives into parallelizable task forks
- Routes tasks by learned agent performance, with keyword cold-start
- Trips a circuit breaker around failing agents
- Briefs agents with retrieved knowledge from past work
- Defers non-essential work under cost-ceiling pressure`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: XDG lookup)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(knowledgeCmd)
	rootCmd.AddCommand(retrainCmd)
	rootCmd.AddCommand(versionCmd)
}
