// Package checkpoint provides the persisted snapshot of a run's progress
// and the file-backed store that saves, loads, and clears it. The snapshot
// is the crash-recovery unit: the engine saves it after every phase
// transition and after every loop iteration, and a fresh process resumes a
// run mid-loop from what it finds here.
package checkpoint

import (
	"fmt"
	"slices"
)

// Run modes. ModePreset marks a run whose task plan was supplied up front
// instead of being decomposed from a specification.
const (
	ModeIssue  = "issue"
	ModePreset = "preset"
)

// Task is one decomposed implementation task.
type Task struct {
	// Index is the task's position in the decomposition output. Stream
	// results are aligned with it.
	Index int `json:"index"`
	// Description is the task text handed to the implementing agent.
	Description string `json:"description"`
	// DependsOn lists the indexes of earlier tasks whose output this task
	// requires. Declared explicitly by the decomposition response, never
	// inferred.
	DependsOn []int `json:"depends_on,omitempty"`
	// Frontend marks the task as frontend work, feeding the design
	// phase's skip condition.
	Frontend bool `json:"frontend,omitempty"`
}

// StreamResult is the terminal artifact of one implementation stream.
// A nil slot in RunCheckpoint.StreamResults means the stream has not
// reached a successful terminal state; failed streams leave their slot
// empty and are eligible for re-execution on resume.
type StreamResult struct {
	Index  int    `json:"index"`
	Task   string `json:"task"`
	Output string `json:"output"`
}

// IterationProgress is the per-loop resume state: the last draft (or
// feedback-revised draft) and how many reviewer iterations have been fully
// consumed.
type IterationProgress struct {
	Content             string `json:"content"`
	CompletedIterations int    `json:"completed_iterations"`
}

// RunCheckpoint is the full progress snapshot of one run. The engine
// exclusively owns and mutates the in-memory value; the Store only
// serializes and deserializes it.
type RunCheckpoint struct {
	RunID     string `json:"run_id"`
	Mode      string `json:"mode,omitempty"`
	IssueBody string `json:"issue_body,omitempty"`

	// CompletedPhases is the monotonically growing set of phase
	// identities that reached Done or Skipped.
	CompletedPhases []string `json:"completed_phases,omitempty"`

	// Per-phase output artifacts.
	Spec          string          `json:"spec,omitempty"`
	DesignSpec    string          `json:"design_spec,omitempty"`
	Tasks         []Task          `json:"tasks,omitempty"`
	StreamResults []*StreamResult `json:"stream_results,omitempty"`
	// CrossReview holds the revised combined report when cross-model
	// review runs in global mode; per-stream mode revises the stream
	// outputs in place instead.
	CrossReview string `json:"cross_review,omitempty"`

	// ActivePhase is the one phase in flight when the run stopped; at
	// most one, since top-level phases are strictly sequential.
	ActivePhase string `json:"active_phase,omitempty"`
	// PhaseDraft is the active phase's working draft.
	PhaseDraft string `json:"phase_draft,omitempty"`

	// IterationProgress maps loop identities to their resume state.
	IterationProgress map[string]IterationProgress `json:"iteration_progress,omitempty"`
}

// New creates a fresh checkpoint for a run.
func New(runID, issueBody string) *RunCheckpoint {
	return &RunCheckpoint{RunID: runID, IssueBody: issueBody}
}

// MarkPhaseDone records a phase identity as completed. Idempotent.
func (c *RunCheckpoint) MarkPhaseDone(phaseID string) {
	if !c.IsPhaseDone(phaseID) {
		c.CompletedPhases = append(c.CompletedPhases, phaseID)
	}
}

// IsPhaseDone reports whether the phase identity has completed.
func (c *RunCheckpoint) IsPhaseDone(phaseID string) bool {
	return slices.Contains(c.CompletedPhases, phaseID)
}

// SetIteration records loop progress under the given loop identity.
func (c *RunCheckpoint) SetIteration(loopID, content string, completed int) {
	if c.IterationProgress == nil {
		c.IterationProgress = make(map[string]IterationProgress)
	}
	c.IterationProgress[loopID] = IterationProgress{
		Content:             content,
		CompletedIterations: completed,
	}
}

// Iteration returns the recorded progress for a loop identity, if any.
func (c *RunCheckpoint) Iteration(loopID string) (IterationProgress, bool) {
	p, ok := c.IterationProgress[loopID]
	return p, ok
}

// ClearIterations drops all recorded loop progress for identities with the
// given prefix. Called when the enclosing phase completes so stale loop
// state cannot leak into a resumed run.
func (c *RunCheckpoint) ClearIterations(prefix string) {
	for id := range c.IterationProgress {
		if id == prefix || len(id) > len(prefix) && id[:len(prefix)+1] == prefix+"/" {
			delete(c.IterationProgress, id)
		}
	}
	if len(c.IterationProgress) == 0 {
		c.IterationProgress = nil
	}
}

// Result returns the stream result for a task index, or nil if the stream
// has not succeeded.
func (c *RunCheckpoint) Result(index int) *StreamResult {
	if index < 0 || index >= len(c.StreamResults) {
		return nil
	}
	return c.StreamResults[index]
}

// SetResult records a stream's terminal artifact, growing the slot slice to
// the task count on first use.
func (c *RunCheckpoint) SetResult(total int, r *StreamResult) {
	if len(c.StreamResults) < total {
		grown := make([]*StreamResult, total)
		copy(grown, c.StreamResults)
		c.StreamResults = grown
	}
	c.StreamResults[r.Index] = r
}

// LoopID builds the checkpoint key identifying one instance of the generic
// iteration loop: the phase identity, optionally a stream index, and the
// loop role within the phase.
func LoopID(phaseID string, stream int, role string) string {
	if stream < 0 {
		return fmt.Sprintf("%s/%s", phaseID, role)
	}
	return fmt.Sprintf("%s/stream-%d/%s", phaseID, stream, role)
}
