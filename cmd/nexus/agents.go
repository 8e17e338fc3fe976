package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Garrett-s-Apps/nexus/internal/breaker"
	"github.com/Garrett-s-Apps/nexus/internal/registry"
	"github.com/Garrett-s-Apps/nexus/pkg/models"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Show the agent roster with circuit and reliability state",
	RunE:  runAgents,
}

func runAgents(cmd *cobra.Command, args []string) error {
	rt, err := openStores()
	if err != nil {
		return err
	}
	defer rt.Close()

	reg, err := registry.Load(rt.cfg.Registry.Path)
	if err != nil {
		return fmt.Errorf("load agent roster: %w", err)
	}
	defer reg.Close()

	br := breaker.New(rt.db, rt.cfg.Breaker.FailureThreshold, rt.cfg.Breaker.Cooldown)
	if err := br.Restore(); err != nil {
		return fmt.Errorf("restore breaker state: %w", err)
	}

	agents := reg.Agents()
	if len(agents) == 0 {
		fmt.Println("Roster is empty.")
		return nil
	}

	for _, a := range agents {
		outcomes, err := rt.db.CountOutcomesByAgent(a.ID)
		if err != nil {
			return fmt.Errorf("count outcomes for %s: %w", a.ID, err)
		}
		reliability, err := rt.db.GetAgentReliability(a.ID)
		if err != nil {
			return fmt.Errorf("reliability for %s: %w", a.ID, err)
		}

		fmt.Printf("%s (%s)\n", color.New(color.Bold).Sprint(a.ID), a.Tier)
		fmt.Printf("  Domains:  %s\n", strings.Join(a.DomainTags, ", "))
		fmt.Printf("  Circuit:  %s\n", circuitString(br.State(a.ID)))
		fmt.Printf("  Outcomes: %d\n", outcomes)
		if reliability.Trips > 0 {
			fmt.Printf("  Trips:    %d (avg recovery %.0fs)\n", reliability.Trips, reliability.AvgRecovery)
		}
	}
	return nil
}

func circuitString(s models.CircuitState) string {
	switch s {
	case models.CircuitClosed:
		return color.GreenString(string(s))
	case models.CircuitOpen:
		return color.RedString(string(s))
	default:
		return color.YellowString(string(s))
	}
}
