package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Garrett-s-Apps/nexus/pkg/models"
)

var (
	runCeiling float64
	runSource  string
)

var runCmd = &cobra.Command{
	Use:   "run <directive>",
	Short: "Submit a directive and execute it to completion",
	Long: `Submit a high-level directive. Nexus decomposes it into a task graph,
forks independent workstreams, and executes them in parallel under the
given cost ceiling.`,
	Args: cobra.ExactArgs(1),
	RunE: runDirective,
}

func init() {
	runCmd.Flags().Float64Var(&runCeiling, "ceiling", 10.0, "Cost ceiling in dollars (0 = unlimited)")
	runCmd.Flags().StringVar(&runSource, "source", "cli", "Directive source tag")
}

func runDirective(cmd *cobra.Command, args []string) error {
	rt, err := openEngine()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Retention sweep runs alongside execution.
	go pruneLoop(ctx, rt)

	handle, err := rt.scheduler.Submit(ctx, args[0], runCeiling, runSource)
	if err != nil {
		return fmt.Errorf("submit directive: %w", err)
	}

	fmt.Printf("Directive %s submitted (ceiling $%.2f)\n", handle.ID(), runCeiling)
	if len(handle.Similar) > 0 {
		fmt.Println("\nSimilar past work:")
		for _, r := range handle.Similar {
			fmt.Printf("  %s %s\n", color.CyanString("•"), firstLine(r.Chunk.Content))
		}
	}

	status, runErr := handle.Wait()

	directive, err := rt.db.GetDirective(handle.ID())
	if err != nil || directive == nil {
		return fmt.Errorf("read directive result: %w", err)
	}
	tasks, err := rt.db.ListTasks(handle.ID())
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	fmt.Println()
	printDirectiveResult(directive, tasks)

	if deferred := handle.Deferred(); len(deferred) > 0 {
		fmt.Printf("\n%s %d task(s) deferred by budget pressure. Raise the ceiling and rerun to finish them.\n",
			color.YellowString("⚠"), len(deferred))
	}
	if escalations, err := rt.db.ListEscalations(handle.ID()); err == nil && len(escalations) > 0 {
		fmt.Printf("\n%s Escalations needing review:\n", color.RedString("✗"))
		for _, esc := range escalations {
			fmt.Printf("  - %s\n", esc.Reason)
		}
	}

	if status != models.DirectiveStatusComplete {
		if runErr != nil {
			return fmt.Errorf("directive %s: %w", status, runErr)
		}
		return fmt.Errorf("directive finished with status %s", status)
	}
	return nil
}

func pruneLoop(ctx context.Context, rt *runtime) {
	interval := rt.cfg.Retrieval.PruneInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := rt.service.Prune(); err != nil {
				log.Printf("[knowledge] prune sweep failed: %v", err)
			}
		}
	}
}

func printDirectiveResult(d *models.Directive, tasks []*models.Task) {
	fmt.Printf("Directive %s: %s\n", d.ID, statusString(string(d.Status)))
	fmt.Printf("  Cost: $%.4f / $%.2f\n", d.CostIncurred, d.CostCeiling)
	if d.EscalationReason != "" {
		fmt.Printf("  Reason: %s\n", d.EscalationReason)
	}
	fmt.Printf("  Tasks:\n")
	for _, t := range tasks {
		label := t.Title
		if label == "" {
			label = t.Description
		}
		fmt.Printf("    %s %s (%s, $%.4f)\n", taskMark(t.Status), truncateLine(label, 70), t.Status, t.Cost)
	}
}

func taskMark(s models.TaskStatus) string {
	switch s {
	case models.TaskStatusDone:
		return color.GreenString("✓")
	case models.TaskStatusFailed:
		return color.RedString("✗")
	default:
		return color.YellowString("○")
	}
}

func statusString(s string) string {
	switch s {
	case "complete":
		return color.GreenString(s)
	case "failed", "escalated":
		return color.RedString(s)
	default:
		return color.YellowString(s)
	}
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return truncateLine(s[:i], 90)
		}
	}
	return truncateLine(s, 90)
}

func truncateLine(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
