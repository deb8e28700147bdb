// Package loop implements the generic draft → review → approve iteration
// loop shared by spec review, design review, per-stream code review, QA,
// and cross-model review. Each use site supplies a drafting call, a
// reviewing call, an approval keyword, and a loop identity under which
// progress is persisted after every iteration so a restarted run resumes
// mid-loop rather than from iteration 1.
package loop

import (
	"context"
	"fmt"

	"github.com/urbanisierung/copilot-swarm/internal/agent"
	"github.com/urbanisierung/copilot-swarm/internal/checkpoint"
	"github.com/urbanisierung/copilot-swarm/internal/logging"
)

// ProgressSink receives loop progress after every iteration. The engine's
// sink writes it into the run checkpoint and saves.
type ProgressSink interface {
	SaveIteration(loopID, content string, completed int) error
}

// Config parameterizes one loop instance.
type Config struct {
	// ID is the loop identity used for checkpointing.
	ID string

	// MaxIterations bounds the number of consumed reviewer iterations.
	MaxIterations int

	// ApprovalKeyword terminates the loop when present in a review.
	ApprovalKeyword string

	// ClarificationKeyword, with Clarify, enables the clarification path.
	// A review containing it routes its embedded question to Clarify and
	// the answer to Revise without consuming an iteration.
	ClarificationKeyword string

	// Draft produces the initial draft. Skipped when resuming.
	Draft func(ctx context.Context) (string, error)

	// Review sends the current draft to the reviewer and returns its
	// free-text response.
	Review func(ctx context.Context, draft string) (string, error)

	// Revise forwards reviewer feedback (or a clarification answer) to
	// the drafting agent and returns the revised draft.
	Revise func(ctx context.Context, draft, feedback string) (string, error)

	// Clarify asks the clarification agent the extracted question.
	// Nil disables the clarification path.
	Clarify func(ctx context.Context, question string) (string, error)

	Classifier agent.Classifier
	Sink       ProgressSink

	// Resume, when non-nil, restarts the loop from the stored draft with
	// iterations up to CompletedIterations already consumed.
	Resume *checkpoint.IterationProgress

	Logger *logging.Logger
}

// Result is a loop's terminal state. Approved is false when MaxIterations
// was exhausted; the Draft is still the best-effort artifact and downstream
// phases proceed with it.
type Result struct {
	Draft      string
	Approved   bool
	Iterations int // consumed reviewer iterations
}

// Run executes the loop to a terminal state. Agent call failures (after
// their own retry budget) propagate as fatal errors to the enclosing phase
// or stream.
func Run(ctx context.Context, cfg Config) (Result, error) {
	if cfg.MaxIterations < 1 {
		return Result{}, fmt.Errorf("loop %s: maxIterations must be positive", cfg.ID)
	}
	log := cfg.Logger
	if log == nil {
		log = logging.NopLogger()
	}

	var draft string
	completed := 0

	if cfg.Resume != nil {
		draft = cfg.Resume.Content
		completed = cfg.Resume.CompletedIterations
		log.Info("resuming loop", "loop", cfg.ID, "completed_iterations", completed)
	} else {
		var err error
		draft, err = cfg.Draft(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("loop %s: drafting: %w", cfg.ID, err)
		}
		if err := cfg.Sink.SaveIteration(cfg.ID, draft, 0); err != nil {
			return Result{}, fmt.Errorf("loop %s: persisting draft: %w", cfg.ID, err)
		}
	}

	for completed < cfg.MaxIterations {
		response, err := cfg.Review(ctx, draft)
		if err != nil {
			return Result{}, fmt.Errorf("loop %s: review: %w", cfg.ID, err)
		}

		if cfg.Classifier.Matches(response, cfg.ApprovalKeyword) {
			log.Info("draft approved", "loop", cfg.ID, "iterations", completed)
			return Result{Draft: draft, Approved: true, Iterations: completed}, nil
		}

		if cfg.Clarify != nil && cfg.Classifier.Matches(response, cfg.ClarificationKeyword) {
			question := cfg.Classifier.Question(response, cfg.ClarificationKeyword)
			log.Info("clarification requested", "loop", cfg.ID, "question", question)

			answer, err := cfg.Clarify(ctx, question)
			if err != nil {
				return Result{}, fmt.Errorf("loop %s: clarification: %w", cfg.ID, err)
			}

			feedback := fmt.Sprintf("The reviewer needed clarification.\nQuestion: %s\nAnswer: %s\nRevise the draft accordingly.", question, answer)
			draft, err = cfg.Revise(ctx, draft, feedback)
			if err != nil {
				return Result{}, fmt.Errorf("loop %s: revising: %w", cfg.ID, err)
			}
			// Clarification does not consume an iteration; the count
			// persisted with the revised draft stays unchanged.
			if err := cfg.Sink.SaveIteration(cfg.ID, draft, completed); err != nil {
				return Result{}, fmt.Errorf("loop %s: persisting draft: %w", cfg.ID, err)
			}
			continue
		}

		// The whole response is feedback; revise and consume an iteration.
		draft, err = cfg.Revise(ctx, draft, response)
		if err != nil {
			return Result{}, fmt.Errorf("loop %s: revising: %w", cfg.ID, err)
		}
		completed++
		if err := cfg.Sink.SaveIteration(cfg.ID, draft, completed); err != nil {
			return Result{}, fmt.Errorf("loop %s: persisting draft: %w", cfg.ID, err)
		}
	}

	log.Warn("loop exhausted without approval", "loop", cfg.ID, "iterations", completed)
	return Result{Draft: draft, Approved: false, Iterations: completed}, nil
}
