package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/urbanisierung/copilot-swarm/internal/checkpoint"
	"github.com/urbanisierung/copilot-swarm/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show checkpointed runs",
	Long:  `List checkpointed runs, or show one run's phase and stream progress.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := checkpoint.NewStore(checkpointDir(cfg))
	if err != nil {
		return err
	}

	if len(args) == 0 {
		runs, err := store.List()
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No checkpointed runs")
			return nil
		}
		for _, id := range runs {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	}

	runID := args[0]
	cp, err := store.Load(runID)
	if err != nil {
		return err
	}
	if cp == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "No checkpoint for run %s\n", runID)
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run: %s\n", cp.RunID)
	if cp.Mode != "" {
		fmt.Fprintf(out, "Mode: %s\n", cp.Mode)
	}
	fmt.Fprintf(out, "Completed phases: %d\n", len(cp.CompletedPhases))
	for _, id := range cp.CompletedPhases {
		fmt.Fprintf(out, "  - %s\n", id)
	}
	if cp.ActivePhase != "" {
		fmt.Fprintf(out, "Active phase: %s\n", cp.ActivePhase)
	}

	if len(cp.Tasks) > 0 {
		done := 0
		for i := range cp.Tasks {
			if cp.Result(i) != nil {
				done++
			}
		}
		fmt.Fprintf(out, "Streams: %d/%d completed\n", done, len(cp.Tasks))
		for _, t := range cp.Tasks {
			state := "pending"
			if cp.Result(t.Index) != nil {
				state = "completed"
			}
			fmt.Fprintf(out, "  [%d] %s (%s)\n", t.Index, t.Description, state)
		}
	}

	if len(cp.IterationProgress) > 0 {
		fmt.Fprintf(out, "In-flight loops: %d\n", len(cp.IterationProgress))
	}
	return nil
}
