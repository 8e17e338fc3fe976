package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Garrett-s-Apps/nexus/internal/feedback"
	"github.com/Garrett-s-Apps/nexus/internal/router"
)

var retrainCmd = &cobra.Command{
	Use:   "retrain",
	Short: "Retrain the routing model from recorded outcomes",
	RunE:  runRetrain,
}

func runRetrain(cmd *cobra.Command, args []string) error {
	rt, err := openStores()
	if err != nil {
		return err
	}
	defer rt.Close()

	r := router.New(allowAll{}, rt.cfg.Router.MinTrainingSamples)
	trainer := feedback.New(rt.db, r)

	model, err := trainer.Retrain()
	if err != nil {
		return fmt.Errorf("retrain: %w", err)
	}

	fmt.Printf("Routing model trained on %d outcome(s) across %d agent(s).\n",
		model.Samples(), model.Agents())
	if model.Samples() < rt.cfg.Router.MinTrainingSamples {
		fmt.Printf("Below the %d-sample threshold; routing stays on keyword matching.\n",
			rt.cfg.Router.MinTrainingSamples)
	}
	return nil
}

// allowAll satisfies the router gate for offline training runs.
type allowAll struct{}

func (allowAll) Eligible(string) bool { return true }
func (allowAll) Allow(string) bool { return true }
