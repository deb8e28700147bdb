package engine

import (
	"context"
	"fmt"

	"github.com/urbanisierung/copilot-swarm/internal/checkpoint"
	"github.com/urbanisierung/copilot-swarm/internal/config"
	"github.com/urbanisierung/copilot-swarm/internal/errors"
	"github.com/urbanisierung/copilot-swarm/internal/logging"
	"github.com/urbanisierung/copilot-swarm/internal/wave"
)

// runImplement executes the decomposed tasks as concurrent streams in
// dependency-ordered waves. A failed stream leaves its result slot empty
// and never aborts the phase; it is eligible for re-execution on resume.
func (e *Engine) runImplement(ctx context.Context, id string, p *config.ImplementPhase, log *logging.Logger) error {
	tasks := e.tasks()
	if len(tasks) == 0 {
		return errors.NewConfigError("implement phase requires a decomposed or pre-supplied task plan", nil)
	}

	waves, err := wave.Partition(tasks)
	if err != nil {
		return fmt.Errorf("partitioning tasks: %w", err)
	}

	runner := wave.NewRunner(e.cfg.Engine.MaxParallel, log)
	total := len(tasks)

	for wi, indexes := range waves {
		var pending []checkpoint.Task
		for _, i := range indexes {
			if e.result(i) == nil {
				pending = append(pending, tasks[i])
			}
		}
		if len(pending) == 0 {
			log.Debug("wave already completed", "wave", wi)
			continue
		}
		log.Info("wave started", "wave", wi, "streams", len(pending))

		outcomes := runner.RunWave(ctx, pending, func(ctx context.Context, task checkpoint.Task) (*checkpoint.StreamResult, error) {
			return e.runStream(ctx, id, p, task)
		})

		e.mu.Lock()
		for _, o := range outcomes {
			if o.Result != nil {
				e.cp.SetResult(total, o.Result)
				e.cp.ClearIterations(fmt.Sprintf("%s/stream-%d", id, o.Index))
			}
		}
		err := e.store.Save(e.cp)
		e.mu.Unlock()
		if err != nil {
			return fmt.Errorf("saving checkpoint: %w", err)
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}

	succeeded := 0
	for i := range tasks {
		if e.result(i) != nil {
			succeeded++
		}
	}
	e.mu.Lock()
	e.streamsTotal = total
	e.streamsFailed = total - succeeded
	e.mu.Unlock()

	if succeeded < total {
		log.Warn("phase finished with failed streams", "failed", total-succeeded, "total", total)
	}
	return nil
}

// runStream executes one implementation task to a terminal state: the
// engineering draft, the configured review chain, and the QA loop. The
// returned output is the stream's final report.
func (e *Engine) runStream(ctx context.Context, phaseID string, p *config.ImplementPhase, task checkpoint.Task) (*checkpoint.StreamResult, error) {
	log := e.log.WithPhase(phaseID).WithStream(task.Index)

	drafter, err := e.createSession(ctx, p.Agent, e.pipe.PrimaryModel)
	if err != nil {
		return nil, err
	}
	defer drafter.Destroy()

	chain := &reviewChain{engine: e, phaseID: phaseID, stream: task.Index, drafter: drafter, log: log}
	prompt := implementPrompt(task, e.specText(), e.designText(), e.dependencyResults(task))

	report, err := chain.run(ctx, prompt, p.Reviews)
	if err != nil {
		return nil, err
	}

	if p.QA != nil {
		report, err = chain.qa(ctx, *p.QA, report)
		if err != nil {
			return nil, err
		}
	}

	return &checkpoint.StreamResult{Index: task.Index, Task: task.Description, Output: report}, nil
}

// dependencyResults returns the completed results of a task's declared
// dependencies, in declaration order. The scheduler guarantees dependency
// waves finished first; a failed dependency simply yields no entry.
func (e *Engine) dependencyResults(task checkpoint.Task) []*checkpoint.StreamResult {
	var deps []*checkpoint.StreamResult
	for _, i := range task.DependsOn {
		if r := e.result(i); r != nil {
			deps = append(deps, r)
		}
	}
	return deps
}
