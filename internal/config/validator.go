package config

import (
	"fmt"

	"github.com/urbanisierung/copilot-swarm/internal/errors"
)

// Validate checks the pipeline document invariants: a non-empty phase list,
// every referenced agent present in the roster, positive iteration counts,
// non-empty approval keywords, and known skip conditions. Violations are
// reported as a single ConfigError listing every problem.
func (p *Pipeline) Validate() error {
	var problems []string

	if len(p.Phases) == 0 {
		problems = append(problems, "pipeline has no phases")
	}
	if p.PrimaryModel == "" {
		problems = append(problems, "primaryModel is required")
	}

	for i, entry := range p.Phases {
		id := PhaseID(entry.Config.Kind(), i)

		for _, name := range entry.Config.AgentNames() {
			if name == "" {
				continue
			}
			if _, ok := p.Agents[name]; !ok {
				problems = append(problems, fmt.Sprintf("%s references unknown agent %q", id, name))
			}
		}

		switch cfg := entry.Config.(type) {
		case *SpecPhase:
			problems = append(problems, validateReviews(id, cfg.Reviews)...)
		case *DesignPhase:
			problems = append(problems, validateReviews(id, cfg.Reviews)...)
			if cfg.Condition != "" && cfg.Condition != CondFrontendTasks && cfg.Condition != CondNoPresetPlan {
				problems = append(problems, fmt.Sprintf("%s has unknown condition %q", id, cfg.Condition))
			}
		case *DecomposePhase:
			if cfg.Agent == "" {
				problems = append(problems, fmt.Sprintf("%s requires an agent", id))
			}
		case *ImplementPhase:
			if cfg.Agent == "" {
				problems = append(problems, fmt.Sprintf("%s requires an agent", id))
			}
			problems = append(problems, validateReviews(id, cfg.Reviews)...)
			if cfg.QA != nil {
				if cfg.QA.MaxIterations <= 0 {
					problems = append(problems, fmt.Sprintf("%s qa maxIterations must be positive", id))
				}
				if cfg.QA.ApprovalKeyword == "" {
					problems = append(problems, fmt.Sprintf("%s qa approvalKeyword is required", id))
				}
			}
		case *CrossModelReviewPhase:
			if cfg.MaxIterations <= 0 {
				problems = append(problems, fmt.Sprintf("%s maxIterations must be positive", id))
			}
			if cfg.ApprovalKeyword == "" {
				problems = append(problems, fmt.Sprintf("%s approvalKeyword is required", id))
			}
		case *VerifyPhase:
			if cfg.MaxIterations <= 0 {
				problems = append(problems, fmt.Sprintf("%s maxIterations must be positive", id))
			}
		default:
			problems = append(problems, fmt.Sprintf("%s has unhandled kind %q", id, entry.Config.Kind()))
		}
	}

	if len(problems) > 0 {
		msg := problems[0]
		for _, p := range problems[1:] {
			msg += "; " + p
		}
		return errors.NewConfigError(msg, nil)
	}
	return nil
}

func validateReviews(id string, reviews []ReviewStep) []string {
	var problems []string
	for j, r := range reviews {
		if r.Reviewer == "" {
			problems = append(problems, fmt.Sprintf("%s review %d requires a reviewer", id, j))
		}
		if r.MaxIterations <= 0 {
			problems = append(problems, fmt.Sprintf("%s review %d maxIterations must be positive", id, j))
		}
		if r.ApprovalKeyword == "" {
			problems = append(problems, fmt.Sprintf("%s review %d approvalKeyword is required", id, j))
		}
		// Clarification is an opt-in pair: keyword and agent go together.
		if (r.ClarificationKeyword == "") != (r.ClarificationAgent == "") {
			problems = append(problems, fmt.Sprintf("%s review %d must set both clarificationKeyword and clarificationAgent", id, j))
		}
	}
	return problems
}
