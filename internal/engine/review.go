package engine

import (
	"context"
	"fmt"

	"github.com/urbanisierung/copilot-swarm/internal/agent"
	"github.com/urbanisierung/copilot-swarm/internal/checkpoint"
	"github.com/urbanisierung/copilot-swarm/internal/config"
	"github.com/urbanisierung/copilot-swarm/internal/logging"
	"github.com/urbanisierung/copilot-swarm/internal/loop"
)

// reviewChain drives one drafting session through an ordered list of review
// loops, carrying the draft from one reviewer to the next. The same chain
// serves phase-level artifacts (stream < 0) and per-stream work.
type reviewChain struct {
	engine  *Engine
	phaseID string
	stream  int
	drafter agent.Session
	log     *logging.Logger
}

// run produces the chain's artifact: the initial prompt yields the draft,
// then every review step must run it to a terminal state. With no steps
// configured the drafting call's response is the artifact as-is. On resume
// the chain restarts at the deepest step with stored progress; earlier
// steps already carried the draft forward.
func (c *reviewChain) run(ctx context.Context, initialPrompt string, steps []config.ReviewStep) (string, error) {
	if len(steps) == 0 {
		return c.engine.send(ctx, "draft", c.drafter, initialPrompt)
	}

	start, resume := c.resumePoint(steps)
	var draft string

	for j := start; j < len(steps); j++ {
		var stepResume *checkpoint.IterationProgress
		if j == start {
			stepResume = resume
		}

		result, err := c.runStep(ctx, c.role(j), steps[j], initialPrompt, draft, stepResume)
		if err != nil {
			return "", err
		}
		draft = result.Draft
		if !result.Approved {
			c.log.Warn("proceeding without approval",
				"reviewer", steps[j].Reviewer, "iterations", result.Iterations)
		}
	}
	return draft, nil
}

// runStep executes one review loop. An empty carried draft means this is
// the chain's first step and the drafting call still has to happen; a
// non-empty one is returned without an agent call.
func (c *reviewChain) runStep(ctx context.Context, role string, step config.ReviewStep, initialPrompt, carried string, resume *checkpoint.IterationProgress) (loop.Result, error) {
	e := c.engine

	reviewer, err := e.createSession(ctx, step.Reviewer, e.pipe.PrimaryModel)
	if err != nil {
		return loop.Result{}, err
	}
	defer reviewer.Destroy()

	cfg := loop.Config{
		ID:                   checkpoint.LoopID(c.phaseID, c.stream, role),
		MaxIterations:        step.MaxIterations,
		ApprovalKeyword:      step.ApprovalKeyword,
		ClarificationKeyword: step.ClarificationKeyword,
		Draft: func(ctx context.Context) (string, error) {
			if carried != "" {
				return carried, nil
			}
			return e.send(ctx, "draft", c.drafter, initialPrompt)
		},
		Review: func(ctx context.Context, draft string) (string, error) {
			return e.send(ctx, "review", reviewer, reviewPrompt(draft, step.ApprovalKeyword, step.ClarificationKeyword))
		},
		Revise: func(ctx context.Context, draft, feedback string) (string, error) {
			return e.send(ctx, "revise", c.drafter, revisePrompt(feedback))
		},
		Classifier: e.class,
		Sink:       e,
		Resume:     resume,
		Logger:     c.log,
	}
	if step.ClarificationKeyword != "" && step.ClarificationAgent != "" {
		cfg.Clarify = func(ctx context.Context, question string) (string, error) {
			return e.clarify(ctx, step.ClarificationAgent, question)
		}
	}

	return loop.Run(ctx, cfg)
}

// qa runs the QA loop against an already produced report.
func (c *reviewChain) qa(ctx context.Context, q config.QAStep, report string) (string, error) {
	step := config.ReviewStep{
		Reviewer:        q.Reviewer,
		MaxIterations:   q.MaxIterations,
		ApprovalKeyword: q.ApprovalKeyword,
	}
	resume := c.engine.resumeFor(checkpoint.LoopID(c.phaseID, c.stream, "qa"))

	result, err := c.runStep(ctx, "qa", step, "", report, resume)
	if err != nil {
		return "", err
	}
	if !result.Approved {
		c.log.Warn("proceeding without QA approval",
			"reviewer", q.Reviewer, "iterations", result.Iterations)
	}
	return result.Draft, nil
}

// resumePoint finds the deepest review step with stored loop progress. When
// none exists, phase-level chains fall back to the phase's working draft so
// a run interrupted between draft and first review does not redraft.
func (c *reviewChain) resumePoint(steps []config.ReviewStep) (int, *checkpoint.IterationProgress) {
	start := 0
	var resume *checkpoint.IterationProgress

	for j := range steps {
		if p := c.engine.resumeFor(checkpoint.LoopID(c.phaseID, c.stream, c.role(j))); p != nil {
			start, resume = j, p
		}
	}
	if resume == nil && c.stream < 0 {
		if draft := c.engine.phaseDraft(c.phaseID); draft != "" {
			resume = &checkpoint.IterationProgress{Content: draft}
		}
	}
	return start, resume
}

func (c *reviewChain) role(step int) string {
	return fmt.Sprintf("review-%d", step)
}
