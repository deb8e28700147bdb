package wave

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/urbanisierung/copilot-swarm/internal/checkpoint"
	"github.com/urbanisierung/copilot-swarm/internal/errors"
	"github.com/urbanisierung/copilot-swarm/internal/logging"
)

func wavetasks(n int) []checkpoint.Task {
	tasks := make([]checkpoint.Task, n)
	for i := range tasks {
		tasks[i] = checkpoint.Task{Index: i, Description: fmt.Sprintf("task %d", i)}
	}
	return tasks
}

func TestRunWaveAllSucceed(t *testing.T) {
	r := NewRunner(3, logging.NopLogger())

	outcomes := r.RunWave(context.Background(), wavetasks(3), func(ctx context.Context, task checkpoint.Task) (*checkpoint.StreamResult, error) {
		return &checkpoint.StreamResult{Index: task.Index, Task: task.Description, Output: "ok"}, nil
	})

	if len(outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(outcomes))
	}
	for i, o := range outcomes {
		if o.Err != nil || o.Result == nil {
			t.Errorf("outcome %d = %+v, want success", i, o)
		}
		if o.Index != i {
			t.Errorf("outcome %d index = %d, want task order preserved", i, o.Index)
		}
	}
}

// One stream's failure must not prevent its siblings from reaching a
// terminal state.
func TestRunWavePartialFailure(t *testing.T) {
	r := NewRunner(3, logging.NopLogger())

	var terminal atomic.Int32
	outcomes := r.RunWave(context.Background(), wavetasks(3), func(ctx context.Context, task checkpoint.Task) (*checkpoint.StreamResult, error) {
		defer terminal.Add(1)
		if task.Index == 1 {
			return nil, errors.New("agent gave up")
		}
		return &checkpoint.StreamResult{Index: task.Index, Task: task.Description, Output: "ok"}, nil
	})

	if terminal.Load() != 3 {
		t.Errorf("terminal streams = %d, want all 3", terminal.Load())
	}
	if outcomes[0].Result == nil || outcomes[2].Result == nil {
		t.Error("siblings of the failed stream should succeed")
	}
	if outcomes[1].Result != nil {
		t.Error("failed stream should have no result")
	}
	var sf *errors.StreamFailure
	if !errors.As(outcomes[1].Err, &sf) {
		t.Fatalf("outcome 1 err = %v, want StreamFailure", outcomes[1].Err)
	}
	if sf.Stream != 1 {
		t.Errorf("failure stream = %d, want 1", sf.Stream)
	}
}

func TestRunWaveRespectsParallelBound(t *testing.T) {
	r := NewRunner(2, logging.NopLogger())

	var mu sync.Mutex
	running, peak := 0, 0
	gate := make(chan struct{})

	done := make(chan []Outcome)
	go func() {
		done <- r.RunWave(context.Background(), wavetasks(5), func(ctx context.Context, task checkpoint.Task) (*checkpoint.StreamResult, error) {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()

			<-gate

			mu.Lock()
			running--
			mu.Unlock()
			return &checkpoint.StreamResult{Index: task.Index}, nil
		})
	}()

	close(gate)
	outcomes := <-done

	if len(outcomes) != 5 {
		t.Fatalf("outcomes = %d, want 5", len(outcomes))
	}
	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Errorf("peak concurrency = %d, want ≤ 2", peak)
	}
}

func TestRunWaveCancelledContext(t *testing.T) {
	r := NewRunner(1, logging.NopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := r.RunWave(ctx, wavetasks(2), func(ctx context.Context, task checkpoint.Task) (*checkpoint.StreamResult, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &checkpoint.StreamResult{Index: task.Index}, nil
	})

	for i, o := range outcomes {
		if o.Err == nil && o.Result == nil {
			t.Errorf("outcome %d has neither result nor error", i)
		}
	}
}
