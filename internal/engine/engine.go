// Package engine executes a validated pipeline against a repository: it
// walks the phase sequence in order, dispatches each phase to its handler,
// persists the run checkpoint at every transition and loop iteration, and
// resumes an interrupted run from whatever the checkpoint recorded.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/urbanisierung/copilot-swarm/internal/agent"
	"github.com/urbanisierung/copilot-swarm/internal/checkpoint"
	"github.com/urbanisierung/copilot-swarm/internal/config"
	"github.com/urbanisierung/copilot-swarm/internal/errors"
	"github.com/urbanisierung/copilot-swarm/internal/logging"
)

// Engine drives one run of the pipeline. It exclusively owns the in-memory
// checkpoint; stream goroutines reach it only through mutex-guarded
// methods, so checkpoint writes are serialized even while a wave runs.
type Engine struct {
	cfg     *config.Config
	pipe    *config.Pipeline
	gateway agent.Gateway
	store   *checkpoint.Store
	class   agent.Classifier
	retrier *agent.Retrier
	log     *logging.Logger

	timeout time.Duration

	mu sync.Mutex
	cp *checkpoint.RunCheckpoint

	skipped       map[string]string
	streamsTotal  int
	streamsFailed int
	verification  string
}

// New creates an Engine for the given run. The checkpoint may be freshly
// created or loaded from the store; the engine resumes from whatever it
// records.
func New(cfg *config.Config, pipe *config.Pipeline, gw agent.Gateway, store *checkpoint.Store, cp *checkpoint.RunCheckpoint, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger = logger.WithRun(cp.RunID)
	return &Engine{
		cfg:     cfg,
		pipe:    pipe,
		gateway: gw,
		store:   store,
		class:   agent.KeywordClassifier{},
		retrier: agent.NewRetrier(cfg.Session.RetryAttempts, cfg.RetryBackoff(), logger),
		log:     logger,
		timeout: cfg.SessionTimeout(),
		cp:      cp,
		skipped: make(map[string]string),
	}
}

// PhaseStatus summarizes one pipeline phase after a run.
type PhaseStatus struct {
	ID     string
	Kind   config.PhaseKind
	Status string
}

// Summary is the caller-facing report of a finished run.
type Summary struct {
	RunID         string
	Phases        []PhaseStatus
	StreamsTotal  int
	StreamsFailed int
	Verification  string
}

// Run executes the pipeline from the checkpoint's current position to the
// end. Completed phases are skipped; the active phase, if any, is resumed
// mid-loop. A returned error means the run stopped before the final phase;
// the checkpoint on disk reflects the last persisted state.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	for i, entry := range e.pipe.Phases {
		phase := entry.Config
		id := config.PhaseID(phase.Kind(), i)
		log := e.log.WithPhase(id)

		if e.isPhaseDone(id) {
			log.Debug("phase already completed")
			continue
		}

		if reason := e.skipReason(phase); reason != "" {
			log.Info("phase skipped", "reason", reason)
			e.mu.Lock()
			e.skipped[id] = reason
			e.mu.Unlock()
			if err := e.completePhase(id); err != nil {
				return nil, err
			}
			continue
		}

		if err := e.beginPhase(id); err != nil {
			return nil, err
		}
		log.Info("phase started")

		if err := e.dispatch(ctx, id, phase, log); err != nil {
			return nil, fmt.Errorf("engine: phase %s: %w", id, err)
		}

		// An implement phase with empty result slots stays out of the
		// completed set, so a resumed run re-enters it and retries
		// exactly the streams without a terminal artifact.
		if e.streamsPending(phase) {
			if err := e.deferPhase(id); err != nil {
				return nil, err
			}
			log.Warn("phase left incomplete; resume retries the failed streams")
			continue
		}

		if err := e.completePhase(id); err != nil {
			return nil, err
		}
		log.Info("phase completed")
	}

	return e.summary(), nil
}

// RunWithRecovery wraps Run with the bounded auto-resume budget: after an
// unhandled mid-run failure the engine restarts itself from the in-memory
// checkpoint, up to the configured number of times. Configuration errors
// and cancellation are never auto-resumed.
func (e *Engine) RunWithRecovery(ctx context.Context) (*Summary, error) {
	max := e.cfg.Engine.MaxAutoResume
	for attempt := 0; ; attempt++ {
		summary, err := e.Run(ctx)
		if err == nil {
			return summary, nil
		}

		var ce *errors.ConfigError
		if errors.As(err, &ce) || ctx.Err() != nil || attempt >= max {
			return nil, err
		}
		e.log.Warn("auto-resuming after failure",
			"attempt", attempt+1, "max_auto_resume", max, "error", err)
	}
}

func (e *Engine) dispatch(ctx context.Context, id string, phase config.PhaseConfig, log *logging.Logger) error {
	switch p := phase.(type) {
	case *config.SpecPhase:
		return e.runSpec(ctx, id, p, log)
	case *config.DecomposePhase:
		return e.runDecompose(ctx, id, p, log)
	case *config.DesignPhase:
		return e.runDesign(ctx, id, p, log)
	case *config.ImplementPhase:
		return e.runImplement(ctx, id, p, log)
	case *config.CrossModelReviewPhase:
		return e.runCrossModelReview(ctx, id, p, log)
	case *config.VerifyPhase:
		return e.runVerify(ctx, id, p, log)
	default:
		return fmt.Errorf("unhandled phase kind %q", phase.Kind())
	}
}

// skipReason evaluates a phase's skip predicate against the current run
// state; an empty string means the phase runs.
func (e *Engine) skipReason(phase config.PhaseConfig) string {
	switch p := phase.(type) {
	case *config.DecomposePhase:
		// A preset plan already is the decomposition; re-planning would
		// overwrite it.
		if e.mode() == checkpoint.ModePreset && len(e.tasks()) > 0 {
			return "task plan supplied up front"
		}
	case *config.DesignPhase:
		switch p.Condition {
		case config.CondFrontendTasks:
			if !e.hasFrontendTasks() {
				return "no frontend-tagged tasks"
			}
		case config.CondNoPresetPlan:
			if e.mode() == checkpoint.ModePreset {
				return "task plan supplied up front"
			}
		}
	case *config.CrossModelReviewPhase:
		if e.pipe.ReviewModel == "" || e.pipe.ReviewModel == e.pipe.PrimaryModel {
			return "review model matches primary model"
		}
	}
	return ""
}

// SaveIteration implements loop.ProgressSink: it records loop progress in
// the checkpoint and saves. Phase-level drafting loops also refresh the
// phase's working draft; stream loops and the verify fix loop (whose
// content is command output, not a draft) do not.
func (e *Engine) SaveIteration(loopID, content string, completed int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cp.SetIteration(loopID, content, completed)
	if parts := strings.Split(loopID, "/"); len(parts) == 2 && parts[1] != "fix" {
		e.cp.PhaseDraft = content
	}
	return e.store.Save(e.cp)
}

func (e *Engine) beginPhase(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cp.ActivePhase = id
	if err := e.store.Save(e.cp); err != nil {
		return fmt.Errorf("engine: saving checkpoint: %w", err)
	}
	return nil
}

// streamsPending reports whether an implement phase still has tasks
// without a terminal artifact.
func (e *Engine) streamsPending(phase config.PhaseConfig) bool {
	if phase.Kind() != config.PhaseImplement {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.cp.Tasks {
		if e.cp.Result(i) == nil {
			return true
		}
	}
	return false
}

// deferPhase releases the active phase without marking it done. Stored
// loop progress is kept: the failed streams resume their loops mid-flight.
func (e *Engine) deferPhase(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cp.ActivePhase = ""
	e.cp.PhaseDraft = ""
	if err := e.store.Save(e.cp); err != nil {
		return fmt.Errorf("engine: saving checkpoint: %w", err)
	}
	return nil
}

func (e *Engine) completePhase(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cp.MarkPhaseDone(id)
	e.cp.ClearIterations(id)
	e.cp.ActivePhase = ""
	e.cp.PhaseDraft = ""
	if err := e.store.Save(e.cp); err != nil {
		return fmt.Errorf("engine: saving checkpoint: %w", err)
	}
	return nil
}

// createSession resolves the named agent's instructions and opens a session
// pinned to the given model, applying the per-call retry budget.
func (e *Engine) createSession(ctx context.Context, name, model string) (agent.Session, error) {
	instructions, err := e.instructions(name)
	if err != nil {
		return nil, err
	}

	var session agent.Session
	_, err = e.retrier.Do(ctx, "create-session", func() (string, error) {
		var cerr error
		session, cerr = e.gateway.CreateSession(ctx, instructions, model)
		return "", cerr
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// send submits a prompt on an existing session with the per-call retry
// budget applied.
func (e *Engine) send(ctx context.Context, op string, session agent.Session, prompt string) (string, error) {
	return e.retrier.Do(ctx, op, func() (string, error) {
		return session.Send(ctx, prompt, e.timeout)
	})
}

// clarify asks the named agent a one-shot question on the primary model.
func (e *Engine) clarify(ctx context.Context, name, question string) (string, error) {
	instructions, err := e.instructions(name)
	if err != nil {
		return "", err
	}
	return e.retrier.Do(ctx, "clarify", func() (string, error) {
		return agent.Converse(ctx, e.gateway, instructions, e.pipe.PrimaryModel, question, e.timeout)
	})
}

func (e *Engine) instructions(name string) (string, error) {
	spec, ok := e.pipe.Agents[name]
	if !ok {
		return "", errors.NewConfigError(fmt.Sprintf("agent %q is not defined", name), nil)
	}
	text, err := spec.Resolve()
	if err != nil {
		return "", errors.NewConfigError(fmt.Sprintf("resolving agent %q", name), err)
	}
	return text, nil
}

// resumeFor returns stored loop progress for the identity, or nil.
func (e *Engine) resumeFor(loopID string) *checkpoint.IterationProgress {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p, ok := e.cp.Iteration(loopID); ok {
		return &p
	}
	return nil
}

// phaseDraft returns the stored working draft when the given phase was
// active at the time the checkpoint was written.
func (e *Engine) phaseDraft(phaseID string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cp.ActivePhase == phaseID {
		return e.cp.PhaseDraft
	}
	return ""
}

func (e *Engine) isPhaseDone(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cp.IsPhaseDone(id)
}

func (e *Engine) issueBody() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cp.IssueBody
}

func (e *Engine) mode() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cp.Mode
}

// specText returns the refined specification, falling back to the raw
// issue body when no spec phase ran.
func (e *Engine) specText() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cp.Spec != "" {
		return e.cp.Spec
	}
	return e.cp.IssueBody
}

func (e *Engine) designText() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cp.DesignSpec
}

func (e *Engine) tasks() []checkpoint.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cp.Tasks
}

func (e *Engine) hasFrontendTasks() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, t := range e.cp.Tasks {
		if t.Frontend {
			return true
		}
	}
	return false
}

func (e *Engine) result(index int) *checkpoint.StreamResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cp.Result(index)
}

func (e *Engine) setVerification(status string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.verification = status
}

func (e *Engine) summary() *Summary {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := &Summary{
		RunID:         e.cp.RunID,
		StreamsTotal:  e.streamsTotal,
		StreamsFailed: e.streamsFailed,
		Verification:  e.verification,
	}
	for i, entry := range e.pipe.Phases {
		id := config.PhaseID(entry.Config.Kind(), i)
		status := "done"
		if reason, ok := e.skipped[id]; ok {
			status = "skipped: " + reason
		} else if !e.cp.IsPhaseDone(id) {
			status = "incomplete"
		}
		s.Phases = append(s.Phases, PhaseStatus{ID: id, Kind: entry.Config.Kind(), Status: status})
	}
	return s
}
