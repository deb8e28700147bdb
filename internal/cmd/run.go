package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/urbanisierung/copilot-swarm/internal/agent"
	"github.com/urbanisierung/copilot-swarm/internal/checkpoint"
	"github.com/urbanisierung/copilot-swarm/internal/config"
	"github.com/urbanisierung/copilot-swarm/internal/engine"
	"github.com/urbanisierung/copilot-swarm/internal/logging"
)

var runCmd = &cobra.Command{
	Use:   "run [task-file]",
	Short: "Run the pipeline against a task description",
	Long: `Run the configured pipeline against a task description, read from the
given file or from the --task flag. With --plan, the decomposition output
is supplied up front and decompose-dependent skip conditions see a preset
plan.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringP("pipeline", "p", "", "pipeline document (required)")
	runCmd.Flags().StringP("task", "t", "", "inline task description")
	runCmd.Flags().String("plan", "", "pre-supplied task plan file (JSON array)")
	runCmd.Flags().String("run-id", "", "run identifier (default: generated)")
	_ = runCmd.MarkFlagRequired("pipeline")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	pipelinePath, _ := cmd.Flags().GetString("pipeline")
	pipe, err := config.LoadPipeline(pipelinePath)
	if err != nil {
		return err
	}

	issueBody, err := taskDescription(cmd, args)
	if err != nil {
		return err
	}

	runID, _ := cmd.Flags().GetString("run-id")
	if runID == "" {
		runID = uuid.NewString()[:8]
	}

	cp := checkpoint.New(runID, issueBody)
	cp.Mode = checkpoint.ModeIssue
	if planPath, _ := cmd.Flags().GetString("plan"); planPath != "" {
		data, err := os.ReadFile(planPath)
		if err != nil {
			return fmt.Errorf("failed to read task plan: %w", err)
		}
		tasks, err := engine.ParsePlan(data)
		if err != nil {
			return err
		}
		cp.Tasks = tasks
		cp.Mode = checkpoint.ModePreset
	}

	return executeRun(cmd, cfg, pipe, cp)
}

// taskDescription resolves the task text from the flag or the positional
// file argument.
func taskDescription(cmd *cobra.Command, args []string) (string, error) {
	if task, _ := cmd.Flags().GetString("task"); task != "" {
		return task, nil
	}
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to read task file: %w", err)
		}
		return string(data), nil
	}
	return "", fmt.Errorf("no task given: pass a task file or --task")
}

// executeRun wires the run dependencies and drives the engine to completion,
// shared by run and resume.
func executeRun(cmd *cobra.Command, cfg *config.Config, pipe *config.Pipeline, cp *checkpoint.RunCheckpoint) error {
	store, err := checkpoint.NewStore(checkpointDir(cfg))
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(runDir(cfg, cp.RunID), cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	gateway := agent.NewCLIGateway(cfg.Agent.Command, cfg.Agent.Args, cfg.Agent.ModelFlag, cfg.RepoDir, logger)
	eng := engine.New(cfg, pipe, gateway, store, cp, logger)

	summary, err := eng.RunWithRecovery(cmd.Context())
	if err != nil {
		return fmt.Errorf("run %s stopped: %w (resume with: swarm resume %s)", cp.RunID, err, cp.RunID)
	}

	fmt.Fprint(cmd.OutOrStdout(), renderSummary(summary))
	return nil
}

func checkpointDir(cfg *config.Config) string {
	return filepath.Join(cfg.StateDir, "checkpoints")
}

func runDir(cfg *config.Config, runID string) string {
	return filepath.Join(cfg.StateDir, "runs", runID)
}
