// Package errors provides centralized error definitions and classification
// helpers for the swarm pipeline engine. It defines the error taxonomy the
// engine propagates: configuration errors (fatal at startup), session and
// timeout errors (transient, retried per call site), parse errors (fatal for
// one phase), stream failures (scoped to one implementation task), and
// verification failures (non-fatal summaries).
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewSessionError("create", baseErr)
//	err := errors.NewTimeoutError("send", 5*time.Minute)
//
// Checking errors:
//
//	if errors.IsRetryable(err) { ... }
//
//	var pe *errors.ParseError
//	if errors.As(err, &pe) { ... }
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Sentinel errors used across the engine.
var (
	// ErrCheckpointNotFound indicates that no checkpoint exists for a run.
	ErrCheckpointNotFound = New("checkpoint not found")
	// ErrSessionClosed indicates a send on an already destroyed session.
	ErrSessionClosed = New("agent session closed")
	// ErrDependencyCycle indicates the decomposed task graph is cyclic.
	ErrDependencyCycle = New("task dependency cycle")
)

// ConfigError indicates an invalid pipeline or runtime configuration.
// It is fatal and reported at startup before any agent work begins.
type ConfigError struct {
	Msg string
	Err error
}

// NewConfigError creates a ConfigError with the given message and optional cause.
func NewConfigError(msg string, err error) *ConfigError {
	return &ConfigError{Msg: msg, Err: err}
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("config: %s", e.Msg)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// SessionError indicates a transport or authorization failure while talking
// to the agent backend. It is transient: call sites retry it up to their
// attempt budget before propagating.
type SessionError struct {
	Op  string // "create", "send", "destroy"
	Err error
}

// NewSessionError creates a SessionError for the given gateway operation.
func NewSessionError(op string, err error) *SessionError {
	return &SessionError{Op: op, Err: err}
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("agent session %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// TimeoutError indicates an agent call did not produce a complete response
// within the configured session timeout. Like SessionError it is transient
// and subject to the enclosing call's retry budget.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

// NewTimeoutError creates a TimeoutError for the given operation and limit.
func NewTimeoutError(op string, timeout time.Duration) *TimeoutError {
	return &TimeoutError{Op: op, Timeout: timeout}
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("agent %s timed out after %s", e.Op, e.Timeout)
}

// ParseError indicates an agent response did not contain the expected
// structured payload (e.g. decomposition's task array). It is fatal for the
// phase that required the payload.
type ParseError struct {
	Phase string
	Msg   string
	Err   error
}

// NewParseError creates a ParseError scoped to the given phase.
func NewParseError(phase, msg string, err error) *ParseError {
	return &ParseError{Phase: phase, Msg: msg, Err: err}
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Phase, e.Msg, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Phase, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StreamFailure records the failure of one implementation stream. It never
// cancels sibling streams and never aborts the run on its own; the scheduler
// records it and proceeds to the next wave.
type StreamFailure struct {
	Stream int    // task index
	Task   string // task description
	Err    error
}

// NewStreamFailure creates a StreamFailure for the given task index.
func NewStreamFailure(stream int, task string, err error) *StreamFailure {
	return &StreamFailure{Stream: stream, Task: task, Err: err}
}

func (e *StreamFailure) Error() string {
	return fmt.Sprintf("stream %d failed: %v", e.Stream, e.Err)
}

func (e *StreamFailure) Unwrap() error { return e.Err }

// VerificationFailure indicates the verify phase exhausted its fix attempts
// with commands still failing. It is surfaced as a summary, not a run abort.
type VerificationFailure struct {
	Attempts int
	Command  string
	Output   string
}

func (e *VerificationFailure) Error() string {
	return fmt.Sprintf("verification still failing after %d fix attempts: %s", e.Attempts, e.Command)
}

// IsRetryable reports whether an error is transient and worth retrying.
// Session and timeout errors are retryable; everything else is not.
func IsRetryable(err error) bool {
	var se *SessionError
	if As(err, &se) {
		return true
	}
	var te *TimeoutError
	return As(err, &te)
}

// IsFatal reports whether an error must abort the current run.
// Config and parse errors are fatal; stream and verification failures are
// scoped or non-fatal; transient errors are fatal only once their retry
// budget is exhausted, which call sites signal by propagating them here.
func IsFatal(err error) bool {
	var sf *StreamFailure
	if As(err, &sf) {
		return false
	}
	var vf *VerificationFailure
	return !As(err, &vf)
}
