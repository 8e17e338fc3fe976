package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status [directive-id]",
	Short: "Show recent directives, or the tasks of one directive",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "Number of recent directives to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, err := openStores()
	if err != nil {
		return err
	}
	defer rt.Close()

	if len(args) == 1 {
		return showDirective(rt, args[0])
	}

	directives, err := rt.db.ListDirectives(statusLimit)
	if err != nil {
		return fmt.Errorf("list directives: %w", err)
	}
	if len(directives) == 0 {
		fmt.Println("No directives yet. Run 'nexus run \"<directive>\"' to start.")
		return nil
	}

	for _, d := range directives {
		fmt.Printf("%s  %-10s  $%.4f  %s\n",
			d.ID, statusString(string(d.Status)), d.CostIncurred, truncateLine(d.Text, 60))
	}
	return nil
}

func showDirective(rt *runtime, id string) error {
	directive, err := rt.db.GetDirective(id)
	if err != nil {
		return fmt.Errorf("get directive: %w", err)
	}
	if directive == nil {
		return fmt.Errorf("directive %s not found", id)
	}

	tasks, err := rt.db.ListTasks(id)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	printDirectiveResult(directive, tasks)

	escalations, err := rt.db.ListEscalations(id)
	if err != nil {
		return fmt.Errorf("list escalations: %w", err)
	}
	if len(escalations) > 0 {
		fmt.Println("  Escalations:")
		for _, esc := range escalations {
			fmt.Printf("    - %s\n", esc.Reason)
		}
	}
	return nil
}
