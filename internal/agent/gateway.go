// Package agent provides the session gateway to the conversational coding
// agent backend: the Gateway contract the engine depends on, a CLI-backed
// implementation, a per-call retry budget for transient failures, and the
// keyword decision classifier used to read free-text responses.
package agent

import (
	"context"
	"time"
)

// Session is one conversation with a coding agent. Iterations within one
// session are strictly sequential; each send suspends the caller until a
// complete response is available or the timeout elapses.
type Session interface {
	// Send submits a prompt and blocks for the complete response. It
	// fails with a TimeoutError when timeout elapses and a SessionError
	// on transport failure.
	Send(ctx context.Context, prompt string, timeout time.Duration) (string, error)

	// Destroy releases the session's remote resources. It must be called
	// exactly once per session on every exit path of the call site that
	// created it. Destroying an already destroyed session is an error.
	Destroy() error
}

// Gateway creates agent sessions. It is the only wire-level boundary the
// engine depends on; any transport satisfying this contract is
// substitutable.
type Gateway interface {
	// CreateSession opens a conversation primed with the given
	// instructions, optionally pinned to a model. It fails with a
	// SessionError on transport or authorization failure.
	CreateSession(ctx context.Context, instructions, model string) (Session, error)
}

// Converse is the one-shot convenience: create a session, send a single
// prompt, and destroy the session on every path.
func Converse(ctx context.Context, gw Gateway, instructions, model, prompt string, timeout time.Duration) (string, error) {
	session, err := gw.CreateSession(ctx, instructions, model)
	if err != nil {
		return "", err
	}
	defer session.Destroy()

	return session.Send(ctx, prompt, timeout)
}
