package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/urbanisierung/copilot-swarm/internal/checkpoint"
	"github.com/urbanisierung/copilot-swarm/internal/config"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [run-id]",
	Short: "Delete run checkpoints",
	Long:  `Delete one run's checkpoint, or every checkpoint with --all.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runClean,
}

func init() {
	cleanCmd.Flags().Bool("all", false, "delete every checkpoint")

	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := checkpoint.NewStore(checkpointDir(cfg))
	if err != nil {
		return err
	}

	all, _ := cmd.Flags().GetBool("all")
	switch {
	case all:
		runs, err := store.List()
		if err != nil {
			return err
		}
		for _, id := range runs {
			if err := store.Clear(id); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d checkpoint(s)\n", len(runs))
	case len(args) == 1:
		if err := store.Clear(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared checkpoint for run %s\n", args[0])
	default:
		return fmt.Errorf("pass a run id or --all")
	}
	return nil
}
