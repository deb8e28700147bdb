package engine

import (
	"context"

	"github.com/urbanisierung/copilot-swarm/internal/checkpoint"
	"github.com/urbanisierung/copilot-swarm/internal/config"
	"github.com/urbanisierung/copilot-swarm/internal/logging"
	"github.com/urbanisierung/copilot-swarm/internal/loop"
)

// runSpec refines the raw task description into a specification through the
// phase's review chain.
func (e *Engine) runSpec(ctx context.Context, id string, p *config.SpecPhase, log *logging.Logger) error {
	drafter, err := e.createSession(ctx, p.Agent, e.pipe.PrimaryModel)
	if err != nil {
		return err
	}
	defer drafter.Destroy()

	chain := &reviewChain{engine: e, phaseID: id, stream: -1, drafter: drafter, log: log}
	spec, err := chain.run(ctx, specPrompt(e.issueBody()), p.Reviews)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.cp.Spec = spec
	e.mu.Unlock()
	return nil
}

// runDesign produces the design specification for the frontend-tagged work.
func (e *Engine) runDesign(ctx context.Context, id string, p *config.DesignPhase, log *logging.Logger) error {
	drafter, err := e.createSession(ctx, p.Agent, e.pipe.PrimaryModel)
	if err != nil {
		return err
	}
	defer drafter.Destroy()

	chain := &reviewChain{engine: e, phaseID: id, stream: -1, drafter: drafter, log: log}
	design, err := chain.run(ctx, designPrompt(e.specText(), e.tasks()), p.Reviews)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.cp.DesignSpec = design
	e.mu.Unlock()
	return nil
}

// runCrossModelReview reviews the completed streams' work with the reviewer
// model, routing requested fixes through the fix agent on the primary
// model. Per-stream by default; global mode reviews one combined report.
func (e *Engine) runCrossModelReview(ctx context.Context, id string, p *config.CrossModelReviewPhase, log *logging.Logger) error {
	results := e.completedResults()
	if len(results) == 0 {
		log.Info("no completed streams to review")
		return nil
	}

	if p.Global {
		revised, err := e.crossReviewOne(ctx, id, p, -1, combineReports(results), log)
		if err != nil {
			return err
		}
		e.mu.Lock()
		e.cp.CrossReview = revised
		err = e.store.Save(e.cp)
		e.mu.Unlock()
		return err
	}

	for _, r := range results {
		revised, err := e.crossReviewOne(ctx, id, p, r.Index, r.Output, log.WithStream(r.Index))
		if err != nil {
			return err
		}
		e.mu.Lock()
		r.Output = revised
		err = e.store.Save(e.cp)
		e.mu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

// crossReviewOne runs one cross-model review loop over a report. The report
// itself is the initial draft; no drafting call happens.
func (e *Engine) crossReviewOne(ctx context.Context, phaseID string, p *config.CrossModelReviewPhase, stream int, report string, log *logging.Logger) (string, error) {
	fixer, err := e.createSession(ctx, p.FixAgent, e.pipe.PrimaryModel)
	if err != nil {
		return "", err
	}
	defer fixer.Destroy()

	reviewer, err := e.createSession(ctx, p.Reviewer, e.pipe.ReviewModel)
	if err != nil {
		return "", err
	}
	defer reviewer.Destroy()

	loopID := checkpoint.LoopID(phaseID, stream, "review")
	result, err := loop.Run(ctx, loop.Config{
		ID:              loopID,
		MaxIterations:   p.MaxIterations,
		ApprovalKeyword: p.ApprovalKeyword,
		Draft: func(ctx context.Context) (string, error) {
			return report, nil
		},
		Review: func(ctx context.Context, draft string) (string, error) {
			return e.send(ctx, "cross-review", reviewer, reviewPrompt(draft, p.ApprovalKeyword, ""))
		},
		Revise: func(ctx context.Context, draft, feedback string) (string, error) {
			return e.send(ctx, "fix", fixer, revisePrompt(feedback))
		},
		Classifier: e.class,
		Sink:       e,
		Resume:     e.resumeFor(loopID),
		Logger:     log,
	})
	if err != nil {
		return "", err
	}
	if !result.Approved {
		log.Warn("proceeding without cross-model approval", "iterations", result.Iterations)
	}
	return result.Draft, nil
}

// completedResults returns the streams that reached a successful terminal
// state, in task order.
func (e *Engine) completedResults() []*checkpoint.StreamResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	var results []*checkpoint.StreamResult
	for _, r := range e.cp.StreamResults {
		if r != nil {
			results = append(results, r)
		}
	}
	return results
}
