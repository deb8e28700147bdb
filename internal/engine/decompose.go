package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/urbanisierung/copilot-swarm/internal/agent"
	"github.com/urbanisierung/copilot-swarm/internal/checkpoint"
	"github.com/urbanisierung/copilot-swarm/internal/config"
	"github.com/urbanisierung/copilot-swarm/internal/errors"
	"github.com/urbanisierung/copilot-swarm/internal/logging"
	"github.com/urbanisierung/copilot-swarm/internal/wave"
)

// defaultFrontendMarker tags a task as frontend work when present in its
// description.
const defaultFrontendMarker = "[frontend]"

// frontendKeywords tag a task as frontend work when one appears as a whole
// word in its description, covering planners that ignore the marker
// convention.
var frontendKeywords = map[string]bool{
	"frontend":  true,
	"ui":        true,
	"css":       true,
	"styling":   true,
	"component": true,
	"layout":    true,
}

// runDecompose asks the planning agent to split the specification into
// tasks and parses the JSON array out of its free-text response. A response
// without a parseable task list fails the phase.
func (e *Engine) runDecompose(ctx context.Context, id string, p *config.DecomposePhase, log *logging.Logger) error {
	instructions, err := e.instructions(p.Agent)
	if err != nil {
		return err
	}

	response, err := e.retrier.Do(ctx, "decompose", func() (string, error) {
		return agent.Converse(ctx, e.gateway, instructions, e.pipe.PrimaryModel, decomposePrompt(e.specText()), e.timeout)
	})
	if err != nil {
		return err
	}

	tasks, err := parseTaskList(id, response, p.Marker)
	if err != nil {
		return err
	}

	// Reject a plan the scheduler could never order.
	if _, err := wave.Partition(tasks); err != nil {
		return errors.NewParseError(id, "task dependencies do not form an executable order", err)
	}

	log.Info("specification decomposed", "tasks", len(tasks))
	e.mu.Lock()
	e.cp.Tasks = tasks
	e.mu.Unlock()
	return nil
}

// ParsePlan parses a pre-supplied task plan in the same format the planner
// emits, for runs that skip decomposition.
func ParsePlan(data []byte) ([]checkpoint.Task, error) {
	tasks, err := parseTaskList("plan", string(data), "")
	if err != nil {
		return nil, err
	}
	if _, err := wave.Partition(tasks); err != nil {
		return nil, fmt.Errorf("task dependencies do not form an executable order: %w", err)
	}
	return tasks, nil
}

// parseTaskList extracts the task array from a planner response. Elements
// are either plain description strings or objects carrying a description
// and an optional dependsOn index list.
func parseTaskList(phaseID, response, marker string) ([]checkpoint.Task, error) {
	if marker == "" {
		marker = defaultFrontendMarker
	}

	raw, err := extractJSONArray(response)
	if err != nil {
		return nil, errors.NewParseError(phaseID, "no JSON task array in planner response", err)
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, errors.NewParseError(phaseID, "task array does not parse", err)
	}
	if len(elements) == 0 {
		return nil, errors.NewParseError(phaseID, "planner produced an empty task list", nil)
	}

	tasks := make([]checkpoint.Task, 0, len(elements))
	for i, element := range elements {
		var description string
		var deps []int

		var s string
		if err := json.Unmarshal(element, &s); err == nil {
			description = s
		} else {
			var obj struct {
				Description string `json:"description"`
				DependsOn   []int  `json:"dependsOn"`
			}
			if err := json.Unmarshal(element, &obj); err != nil {
				return nil, errors.NewParseError(phaseID,
					fmt.Sprintf("task %d is neither a string nor a task object", i), err)
			}
			description, deps = obj.Description, obj.DependsOn
		}

		description = strings.TrimSpace(description)
		if description == "" {
			return nil, errors.NewParseError(phaseID, fmt.Sprintf("task %d has an empty description", i), nil)
		}

		tasks = append(tasks, checkpoint.Task{
			Index:       i,
			Description: description,
			DependsOn:   deps,
			Frontend:    isFrontendTask(description, marker),
		})
	}
	return tasks, nil
}

func isFrontendTask(description, marker string) bool {
	if strings.Contains(strings.ToLower(description), strings.ToLower(marker)) {
		return true
	}
	words := strings.FieldsFunc(strings.ToLower(description), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if frontendKeywords[w] {
			return true
		}
	}
	return false
}

// extractJSONArray returns the first balanced, valid JSON array embedded in
// free text. Brackets inside JSON strings are skipped, so prose before or
// after the array (including fenced code markers) does not confuse the
// scan.
func extractJSONArray(text string) (json.RawMessage, error) {
	for start := strings.IndexByte(text, '['); start >= 0; {
		if end := matchBracket(text, start); end > 0 {
			candidate := text[start:end]
			if json.Valid([]byte(candidate)) {
				return json.RawMessage(candidate), nil
			}
		}
		next := strings.IndexByte(text[start+1:], '[')
		if next < 0 {
			break
		}
		start += 1 + next
	}
	return nil, fmt.Errorf("no valid JSON array found")
}

// matchBracket returns the index one past the bracket closing the array
// opened at start, or -1 when unterminated.
func matchBracket(text string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inString:
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == '[':
			depth++
		case c == ']':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}
