package agent

import (
	"context"
	"testing"
	"time"

	"github.com/urbanisierung/copilot-swarm/internal/errors"
	"github.com/urbanisierung/copilot-swarm/internal/logging"
)

func TestRetrierSucceedsAfterTransientFailures(t *testing.T) {
	r := NewRetrier(3, time.Millisecond, logging.NopLogger())

	calls := 0
	got, err := r.Do(context.Background(), "send", func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.NewSessionError("send", errors.New("flaky"))
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != "ok" {
		t.Errorf("response = %q", got)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetrierExhaustsBudget(t *testing.T) {
	r := NewRetrier(2, time.Millisecond, logging.NopLogger())

	calls := 0
	_, err := r.Do(context.Background(), "send", func() (string, error) {
		calls++
		return "", errors.NewTimeoutError("send", time.Minute)
	})
	if err == nil {
		t.Fatal("expected error after exhausted budget")
	}
	var te *errors.TimeoutError
	if !errors.As(err, &te) {
		t.Errorf("error is %T, want *errors.TimeoutError", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetrierNonRetryablePropagatesImmediately(t *testing.T) {
	r := NewRetrier(5, time.Millisecond, logging.NopLogger())

	calls := 0
	_, err := r.Do(context.Background(), "send", func() (string, error) {
		calls++
		return "", errors.NewParseError("decompose", "no array", nil)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry of fatal errors)", calls)
	}
}

func TestRetrierHonorsContextDuringBackoff(t *testing.T) {
	r := NewRetrier(3, time.Hour, logging.NopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := r.Do(ctx, "send", func() (string, error) {
		return "", errors.NewSessionError("send", errors.New("flaky"))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Do should return promptly on cancel, took %s", elapsed)
	}
}
