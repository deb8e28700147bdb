package agent

import (
	"context"
	"time"

	"github.com/urbanisierung/copilot-swarm/internal/errors"
	"github.com/urbanisierung/copilot-swarm/internal/logging"
)

// Retrier applies a per-call attempt budget to agent operations. Transient
// failures (session and timeout errors) are retried with exponential
// backoff; once the budget is exhausted the last error propagates to the
// enclosing phase or stream. Non-transient errors propagate immediately.
type Retrier struct {
	// Attempts is the total number of tries per call (minimum 1).
	Attempts int
	// Backoff is the delay before the second attempt, doubled per attempt.
	Backoff time.Duration

	Logger *logging.Logger
}

// NewRetrier creates a Retrier with the given budget.
func NewRetrier(attempts int, backoff time.Duration, logger *logging.Logger) *Retrier {
	if attempts < 1 {
		attempts = 1
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Retrier{Attempts: attempts, Backoff: backoff, Logger: logger}
}

// Do runs fn until it succeeds, fails non-transiently, or the budget is
// exhausted.
func (r *Retrier) Do(ctx context.Context, op string, fn func() (string, error)) (string, error) {
	var lastErr error
	backoff := r.Backoff

	for attempt := 1; attempt <= r.Attempts; attempt++ {
		response, err := fn()
		if err == nil {
			return response, nil
		}
		if !errors.IsRetryable(err) {
			return "", err
		}
		lastErr = err

		if attempt == r.Attempts {
			break
		}
		r.Logger.Warn("retrying agent call",
			"op", op, "attempt", attempt, "max_attempts", r.Attempts, "error", err)

		select {
		case <-ctx.Done():
			return "", errors.NewSessionError(op, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return "", lastErr
}
