package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Garrett-s-Apps/nexus/internal/knowledge"
	"github.com/Garrett-s-Apps/nexus/pkg/models"
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Inspect and maintain the knowledge store",
}

var knowledgeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show chunk counts by type",
	RunE:  runKnowledgeStats,
}

var knowledgeSearchTopK int

var knowledgeSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Retrieve chunks matching a query",
	Args:  cobra.ExactArgs(1),
	RunE:  runKnowledgeSearch,
}

var knowledgePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete chunks past their retention window",
	RunE:  runKnowledgePrune,
}

func init() {
	knowledgeSearchCmd.Flags().IntVar(&knowledgeSearchTopK, "top", 5, "Number of results")
	knowledgeCmd.AddCommand(knowledgeStatsCmd)
	knowledgeCmd.AddCommand(knowledgeSearchCmd)
	knowledgeCmd.AddCommand(knowledgePruneCmd)
}

func runKnowledgeStats(cmd *cobra.Command, args []string) error {
	rt, err := openStores()
	if err != nil {
		return err
	}
	defer rt.Close()

	stats, err := rt.service.Stats()
	if err != nil {
		return fmt.Errorf("knowledge stats: %w", err)
	}

	fmt.Printf("Total chunks: %d\n", stats.Total)
	types := make([]models.ChunkType, 0, len(stats.ByType))
	for t := range stats.ByType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, t := range types {
		fmt.Printf("  %-20s %d\n", t, stats.ByType[t])
	}
	return nil
}

func runKnowledgeSearch(cmd *cobra.Command, args []string) error {
	rt, err := openStores()
	if err != nil {
		return err
	}
	defer rt.Close()

	results, err := rt.service.Retrieve(args[0], knowledge.Filters{TopK: knowledgeSearchTopK})
	if err != nil {
		return fmt.Errorf("retrieve: %w", err)
	}
	if len(results) == 0 {
		fmt.Println("No matching chunks.")
		return nil
	}
	for _, r := range results {
		fmt.Printf("%.3f  [%s/%s]  %s\n", r.Score, r.Chunk.Type, r.Chunk.DomainTag, firstLine(r.Chunk.Content))
	}
	return nil
}

func runKnowledgePrune(cmd *cobra.Command, args []string) error {
	rt, err := openStores()
	if err != nil {
		return err
	}
	defer rt.Close()

	removed, err := rt.service.Prune()
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}
	fmt.Printf("Removed %d expired chunk(s).\n", removed)
	return nil
}
