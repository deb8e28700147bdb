package engine

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/urbanisierung/copilot-swarm/internal/agent"
	"github.com/urbanisierung/copilot-swarm/internal/checkpoint"
	"github.com/urbanisierung/copilot-swarm/internal/config"
	"github.com/urbanisierung/copilot-swarm/internal/errors"
	"github.com/urbanisierung/copilot-swarm/internal/logging"
)

// runVerify runs the verification commands against the repository and
// forwards failures to the fix agent, bounded by the phase's iteration
// budget. Exhausting the budget is recorded as a summary, never a run
// abort: the work done so far stays valid.
func (e *Engine) runVerify(ctx context.Context, id string, p *config.VerifyPhase, log *logging.Logger) error {
	commands := p.Commands
	if len(commands) == 0 {
		commands = e.pipe.Verify
	}
	if len(commands) == 0 {
		commands = detectCommands(e.cfg.RepoDir)
	}
	if len(commands) == 0 {
		log.Info("no verification commands configured or detected")
		e.setVerification("skipped: no verification commands")
		return nil
	}

	loopID := checkpoint.LoopID(id, -1, "fix")
	attempt := 0
	if progress := e.resumeFor(loopID); progress != nil {
		attempt = progress.CompletedIterations
		log.Info("resuming verification", "completed_attempts", attempt)
	}

	var fixer agent.Session
	defer func() {
		if fixer != nil {
			fixer.Destroy()
		}
	}()

	for {
		command, output, err := e.runCommands(ctx, commands)
		if err != nil {
			return err
		}
		if command == "" {
			log.Info("verification passed", "commands", len(commands))
			e.setVerification("passed")
			return nil
		}
		log.Warn("verification command failed", "command", command, "attempt", attempt)

		if attempt >= p.MaxIterations {
			failure := &errors.VerificationFailure{Attempts: attempt, Command: command, Output: output}
			log.Error("verification exhausted fix attempts", "error", failure)
			e.setVerification(failure.Error())
			return nil
		}

		if fixer == nil {
			fixer, err = e.createSession(ctx, p.FixAgent, e.pipe.PrimaryModel)
			if err != nil {
				return err
			}
		}
		if _, err := e.send(ctx, "fix", fixer, verifyFixPrompt(command, output)); err != nil {
			return err
		}

		attempt++
		if err := e.SaveIteration(loopID, output, attempt); err != nil {
			return err
		}
	}
}

// runCommands runs each command through the shell in the repository
// directory and returns the first failing command with its combined
// output, or empty strings when all pass.
func (e *Engine) runCommands(ctx context.Context, commands []string) (string, string, error) {
	for _, command := range commands {
		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		cmd.Dir = e.cfg.RepoDir

		out, err := cmd.CombinedOutput()
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		if err != nil {
			return command, fmt.Sprintf("%v\n%s", err, out), nil
		}
	}
	return "", "", nil
}

// detectCommands infers verification commands from the repository's build
// files. First match wins.
func detectCommands(dir string) []string {
	checks := []struct {
		file     string
		commands []string
	}{
		{"go.mod", []string{"go build ./...", "go vet ./...", "go test ./..."}},
		{"package.json", []string{"npm test --silent"}},
		{"Makefile", []string{"make test"}},
	}
	for _, c := range checks {
		if _, err := os.Stat(filepath.Join(dir, c.file)); err == nil {
			return c.commands
		}
	}
	return nil
}
