package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/urbanisierung/copilot-swarm/internal/checkpoint"
	"github.com/urbanisierung/copilot-swarm/internal/config"
	"github.com/urbanisierung/copilot-swarm/internal/errors"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Resume an interrupted run from its checkpoint",
	Long: `Resume a run from its last persisted checkpoint. Completed phases and
streams are skipped; in-flight review loops continue from their stored
draft and iteration count.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringP("pipeline", "p", "", "pipeline document (required)")
	_ = resumeCmd.MarkFlagRequired("pipeline")

	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	pipelinePath, _ := cmd.Flags().GetString("pipeline")
	pipe, err := config.LoadPipeline(pipelinePath)
	if err != nil {
		return err
	}

	store, err := checkpoint.NewStore(checkpointDir(cfg))
	if err != nil {
		return err
	}

	runID := args[0]
	cp, err := store.Load(runID)
	if err != nil {
		return err
	}
	if cp == nil {
		return fmt.Errorf("run %s: %w", runID, errors.ErrCheckpointNotFound)
	}

	return executeRun(cmd, cfg, pipe, cp)
}
