package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"tiergc/domain/demo"
	"tiergc/domain/registry"
)

var demoPolicy string

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the two-object walkthrough",
	Long: "Creates two values, takes and drops a reference on each, runs a " +
		"collection and cleans up. Each step is logged.",
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().StringVar(&demoPolicy, "policy", "eager", "destruction policy: eager or deferred")
}

func runDemo(cmd *cobra.Command, args []string) error {
	policy, err := registry.ParsePolicy(demoPolicy)
	if err != nil {
		return err
	}
	logger := log.New(cmd.OutOrStdout(), "", 0)

	reg := registry.New(
		registry.WithPolicy(policy),
		registry.WithObserver(registry.ObserverFunc(func(e registry.Event) {
			switch e.Kind {
			case registry.EventRegistered:
				logger.Printf("[registry] registering object %v in %v", e.Handle, e.Generation)
			case registry.EventRemoved:
				logger.Printf("[registry] removing object %v from %v", e.Handle, e.Generation)
			case registry.EventPromoted:
				logger.Printf("[registry] promoted object %v to %v", e.Handle, e.Generation)
			case registry.EventDestroyed:
				if e.Reason == registry.ReasonSwept {
					logger.Printf("[registry] collecting garbage object %v", e.Handle)
				}
			}
		})),
	)
	values := demo.NewFactory(demo.WithLogger(logger))

	var handles []registry.Handle
	for _, n := range []int64{1, 2} {
		h, err := values.New(reg, n, registry.Young)
		if err != nil {
			return err
		}
		handles = append(handles, h)
	}
	for _, h := range handles {
		if _, err := reg.AddRef(h); err != nil {
			return err
		}
	}
	for _, h := range handles {
		if _, err := reg.Release(h); err != nil {
			return err
		}
	}

	logger.Println("[registry] starting garbage collection...")
	st := reg.Collect()
	logger.Printf("[registry] garbage collection complete: %v", st)

	logger.Println("[registry] cleaning up all objects...")
	n := reg.Cleanup()
	logger.Printf("[registry] cleanup complete: %d destroyed", n)

	if err := reg.Verify(); err != nil {
		return fmt.Errorf("registry inconsistent: %w", err)
	}
	return nil
}
