package wave

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/urbanisierung/copilot-swarm/internal/checkpoint"
	"github.com/urbanisierung/copilot-swarm/internal/errors"
	"github.com/urbanisierung/copilot-swarm/internal/logging"
)

// StreamFunc executes one implementation task to a terminal state and
// returns its final artifact. An error marks the stream failed; it never
// cancels siblings.
type StreamFunc func(ctx context.Context, task checkpoint.Task) (*checkpoint.StreamResult, error)

// Outcome is the terminal state of one stream within a wave.
type Outcome struct {
	Index  int
	Result *checkpoint.StreamResult // nil when the stream failed
	Err    error                    // a *errors.StreamFailure when Result is nil
}

// Runner executes the streams of one wave concurrently, bounded by
// MaxParallel. Streams share no mutable state; results are collected and
// returned to the caller, which records them after the wave.
type Runner struct {
	// MaxParallel bounds concurrently running streams (minimum 1).
	MaxParallel int

	Logger *logging.Logger
}

// NewRunner creates a Runner with the given concurrency bound.
func NewRunner(maxParallel int, logger *logging.Logger) *Runner {
	if maxParallel < 1 {
		maxParallel = 1
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Runner{MaxParallel: maxParallel, Logger: logger}
}

// RunWave executes the given tasks and blocks until every stream reaches a
// terminal state. One stream's failure is recorded in its Outcome and does
// not cancel or fail its siblings. Outcomes are returned in task order.
func (r *Runner) RunWave(ctx context.Context, tasks []checkpoint.Task, run StreamFunc) []Outcome {
	outcomes := make([]Outcome, len(tasks))
	sem := semaphore.NewWeighted(int64(r.MaxParallel))

	var wg sync.WaitGroup
	for i, task := range tasks {
		if err := sem.Acquire(ctx, 1); err != nil {
			outcomes[i] = Outcome{
				Index: task.Index,
				Err:   errors.NewStreamFailure(task.Index, task.Description, err),
			}
			continue
		}

		wg.Add(1)
		go func(slot int, task checkpoint.Task) {
			defer wg.Done()
			defer sem.Release(1)

			log := r.Logger.WithStream(task.Index)
			log.Info("stream started", "task", task.Description)

			result, err := run(ctx, task)
			if err != nil {
				log.Error("stream failed", "error", err)
				outcomes[slot] = Outcome{
					Index: task.Index,
					Err:   errors.NewStreamFailure(task.Index, task.Description, err),
				}
				return
			}

			log.Info("stream completed")
			outcomes[slot] = Outcome{Index: task.Index, Result: result}
		}(i, task)
	}
	wg.Wait()

	return outcomes
}
