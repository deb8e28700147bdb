package agent

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/urbanisierung/copilot-swarm/internal/errors"
	"github.com/urbanisierung/copilot-swarm/internal/logging"
)

// CLIGateway runs a coding agent CLI in print mode, one process per send.
// Conversation continuity is carried by replaying the session transcript in
// each prompt, so the backend needs no server-side session state.
type CLIGateway struct {
	// Command is the agent binary, e.g. "copilot" or "claude".
	Command string
	// Args are prepended to every invocation.
	Args []string
	// ModelFlag selects the model, e.g. "--model".
	ModelFlag string
	// WorkDir is the repository the agent operates on.
	WorkDir string

	Logger *logging.Logger
}

// NewCLIGateway creates a gateway running the given agent CLI.
func NewCLIGateway(command string, args []string, modelFlag, workDir string, logger *logging.Logger) *CLIGateway {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &CLIGateway{
		Command:   command,
		Args:      args,
		ModelFlag: modelFlag,
		WorkDir:   workDir,
		Logger:    logger,
	}
}

// CreateSession opens a conversation primed with instructions.
func (g *CLIGateway) CreateSession(ctx context.Context, instructions, model string) (Session, error) {
	if g.Command == "" {
		return nil, errors.NewSessionError("create", fmt.Errorf("no agent command configured"))
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewSessionError("create", err)
	}
	return &cliSession{
		gateway:      g,
		instructions: instructions,
		model:        model,
	}, nil
}

// cliSession is one transcript-backed conversation.
type cliSession struct {
	gateway      *CLIGateway
	instructions string
	model        string
	transcript   []exchange
	destroyed    bool
}

type exchange struct {
	prompt   string
	response string
}

func (s *cliSession) Send(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	if s.destroyed {
		return "", errors.NewSessionError("send", errors.ErrSessionClosed)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string{}, s.gateway.Args...)
	args = append(args, "--print")
	if s.model != "" && s.gateway.ModelFlag != "" {
		args = append(args, s.gateway.ModelFlag, s.model)
	}

	cmd := exec.CommandContext(callCtx, s.gateway.Command, args...)
	cmd.Dir = s.gateway.WorkDir
	cmd.Stdin = strings.NewReader(s.buildInput(prompt))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if callCtx.Err() == context.DeadlineExceeded {
		s.gateway.Logger.Warn("agent call timed out",
			"command", s.gateway.Command, "timeout", timeout.String())
		return "", errors.NewTimeoutError("send", timeout)
	}
	if err != nil {
		s.gateway.Logger.Warn("agent call failed",
			"command", s.gateway.Command, "error", err, "stderr", stderr.String())
		return "", errors.NewSessionError("send", fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())))
	}

	response := strings.TrimSpace(stdout.String())
	s.transcript = append(s.transcript, exchange{prompt: prompt, response: response})

	s.gateway.Logger.Debug("agent exchange",
		"command", s.gateway.Command,
		"model", s.model,
		"prompt_bytes", len(prompt),
		"response_bytes", len(response),
		"duration_ms", duration.Milliseconds())

	return response, nil
}

// buildInput assembles the full prompt: instructions, prior exchanges, and
// the new prompt.
func (s *cliSession) buildInput(prompt string) string {
	var b strings.Builder
	b.WriteString(s.instructions)
	b.WriteString("\n")
	for _, e := range s.transcript {
		b.WriteString("\n--- Previous request ---\n")
		b.WriteString(e.prompt)
		b.WriteString("\n--- Your previous response ---\n")
		b.WriteString(e.response)
		b.WriteString("\n")
	}
	b.WriteString("\n--- Request ---\n")
	b.WriteString(prompt)
	b.WriteString("\n")
	return b.String()
}

func (s *cliSession) Destroy() error {
	if s.destroyed {
		return errors.NewSessionError("destroy", errors.ErrSessionClosed)
	}
	s.destroyed = true
	s.transcript = nil
	return nil
}
