package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables that override the pipeline's model identifiers
// at load time.
const (
	EnvPrimaryModel = "SWARM_PRIMARY_MODEL"
	EnvReviewModel  = "SWARM_REVIEW_MODEL"
)

// PhaseKind identifies one of the closed set of pipeline phase variants.
type PhaseKind string

const (
	PhaseSpec             PhaseKind = "spec"
	PhaseDecompose        PhaseKind = "decompose"
	PhaseDesign           PhaseKind = "design"
	PhaseImplement        PhaseKind = "implement"
	PhaseCrossModelReview PhaseKind = "cross-model-review"
	PhaseVerify           PhaseKind = "verify"
)

// PhaseID returns the stable identity of the phase at the given position,
// e.g. "spec-0" or "implement-3". The pipeline sequence never changes after
// load, so identities are stable for the run's lifetime.
func PhaseID(kind PhaseKind, index int) string {
	return fmt.Sprintf("%s-%d", kind, index)
}

// Skip condition names accepted on conditional phases.
const (
	// CondFrontendTasks runs the phase only when at least one decomposed
	// task is frontend-tagged.
	CondFrontendTasks = "frontend-tasks"
	// CondNoPresetPlan runs the phase only when no pre-supplied plan was
	// given to the run.
	CondNoPresetPlan = "no-preset-plan"
)

// Pipeline is the typed, validated pipeline document consumed by the engine.
type Pipeline struct {
	PrimaryModel string               `yaml:"primaryModel"`
	ReviewModel  string               `yaml:"reviewModel"`
	Agents       map[string]AgentSpec `yaml:"agents"`
	Phases       []PhaseEntry         `yaml:"pipeline"`
	Verify       []string             `yaml:"verify"`
}

// AgentSpec is an instruction source for a logical agent name: inline text,
// a "file:" path, or a "builtin:" reference.
type AgentSpec string

// Resolve returns the agent's instruction text, reading referenced files.
func (a AgentSpec) Resolve() (string, error) {
	s := string(a)
	switch {
	case strings.HasPrefix(s, "file:"):
		data, err := os.ReadFile(strings.TrimPrefix(s, "file:"))
		if err != nil {
			return "", fmt.Errorf("reading agent instructions: %w", err)
		}
		return string(data), nil
	case strings.HasPrefix(s, "builtin:"):
		name := strings.TrimPrefix(s, "builtin:")
		instructions, ok := builtinAgents[name]
		if !ok {
			return "", fmt.Errorf("unknown builtin agent %q", name)
		}
		return instructions, nil
	default:
		return s, nil
	}
}

// PhaseConfig is the closed interface over phase variants. The engine
// dispatches on the concrete type; adding a kind without handling it there
// fails the exhaustive default case.
type PhaseConfig interface {
	Kind() PhaseKind
	// AgentNames returns every logical agent name the phase references,
	// for roster validation.
	AgentNames() []string
}

// ReviewStep configures one reviewer in a phase's review chain.
type ReviewStep struct {
	Reviewer             string `yaml:"reviewer"`
	MaxIterations        int    `yaml:"maxIterations"`
	ApprovalKeyword      string `yaml:"approvalKeyword"`
	ClarificationKeyword string `yaml:"clarificationKeyword"`
	ClarificationAgent   string `yaml:"clarificationAgent"`
}

// QAStep configures the QA loop run against each implementation stream.
type QAStep struct {
	Reviewer        string `yaml:"reviewer"`
	MaxIterations   int    `yaml:"maxIterations"`
	ApprovalKeyword string `yaml:"approvalKeyword"`
}

// SpecPhase refines the task description into a specification through a
// draft → review → approve loop.
type SpecPhase struct {
	Agent   string       `yaml:"agent"`
	Reviews []ReviewStep `yaml:"reviews"`
}

func (p *SpecPhase) Kind() PhaseKind { return PhaseSpec }

func (p *SpecPhase) AgentNames() []string {
	return append([]string{p.Agent}, reviewAgentNames(p.Reviews)...)
}

// DecomposePhase splits the specification into independent implementation
// tasks via one agent call returning a JSON task array.
type DecomposePhase struct {
	Agent string `yaml:"agent"`
	// Marker is the substring that tags a task as frontend work
	// (default: "[frontend]").
	Marker string `yaml:"marker"`
}

func (p *DecomposePhase) Kind() PhaseKind { return PhaseDecompose }

func (p *DecomposePhase) AgentNames() []string { return []string{p.Agent} }

// DesignPhase produces a design specification; the only variant that may be
// conditionally skipped (typically on the frontend-tasks predicate).
type DesignPhase struct {
	Agent     string       `yaml:"agent"`
	Condition string       `yaml:"condition"`
	Reviews   []ReviewStep `yaml:"reviews"`
}

func (p *DesignPhase) Kind() PhaseKind { return PhaseDesign }

func (p *DesignPhase) AgentNames() []string {
	return append([]string{p.Agent}, reviewAgentNames(p.Reviews)...)
}

// ImplementPhase runs the decomposed tasks as concurrent streams in
// dependency-ordered waves.
type ImplementPhase struct {
	Agent   string       `yaml:"agent"`
	Reviews []ReviewStep `yaml:"reviews"`
	QA      *QAStep      `yaml:"qa"`
}

func (p *ImplementPhase) Kind() PhaseKind { return PhaseImplement }

func (p *ImplementPhase) AgentNames() []string {
	names := append([]string{p.Agent}, reviewAgentNames(p.Reviews)...)
	if p.QA != nil {
		names = append(names, p.QA.Reviewer)
	}
	return names
}

// CrossModelReviewPhase reviews completed streams with a distinct reviewer
// model, using the implementing agent as the fix drafter. Skipped entirely
// when the review model equals the primary model.
type CrossModelReviewPhase struct {
	Reviewer        string `yaml:"reviewer"`
	FixAgent        string `yaml:"fixAgent"`
	MaxIterations   int    `yaml:"maxIterations"`
	ApprovalKeyword string `yaml:"approvalKeyword"`
	// Global runs one review over all streams instead of one per stream.
	Global bool `yaml:"global"`
}

func (p *CrossModelReviewPhase) Kind() PhaseKind { return PhaseCrossModelReview }

func (p *CrossModelReviewPhase) AgentNames() []string {
	return []string{p.Reviewer, p.FixAgent}
}

// VerifyPhase runs build/test/lint commands and forwards failures to a fix
// agent, bounded by MaxIterations.
type VerifyPhase struct {
	FixAgent      string   `yaml:"fixAgent"`
	MaxIterations int      `yaml:"maxIterations"`
	Commands      []string `yaml:"commands"`
}

func (p *VerifyPhase) Kind() PhaseKind { return PhaseVerify }

func (p *VerifyPhase) AgentNames() []string { return []string{p.FixAgent} }

func reviewAgentNames(reviews []ReviewStep) []string {
	var names []string
	for _, r := range reviews {
		names = append(names, r.Reviewer)
		if r.ClarificationAgent != "" {
			names = append(names, r.ClarificationAgent)
		}
	}
	return names
}

// PhaseEntry wraps a PhaseConfig so the tagged union decodes from the
// document's "kind" discriminator.
type PhaseEntry struct {
	Config PhaseConfig
}

// UnmarshalYAML decodes the phase entry into the concrete variant named by
// its kind field.
func (e *PhaseEntry) UnmarshalYAML(node *yaml.Node) error {
	var probe struct {
		Kind PhaseKind `yaml:"kind"`
	}
	if err := node.Decode(&probe); err != nil {
		return err
	}

	switch probe.Kind {
	case PhaseSpec:
		var p SpecPhase
		if err := node.Decode(&p); err != nil {
			return err
		}
		e.Config = &p
	case PhaseDecompose:
		var p DecomposePhase
		if err := node.Decode(&p); err != nil {
			return err
		}
		e.Config = &p
	case PhaseDesign:
		var p DesignPhase
		if err := node.Decode(&p); err != nil {
			return err
		}
		e.Config = &p
	case PhaseImplement:
		var p ImplementPhase
		if err := node.Decode(&p); err != nil {
			return err
		}
		e.Config = &p
	case PhaseCrossModelReview:
		var p CrossModelReviewPhase
		if err := node.Decode(&p); err != nil {
			return err
		}
		e.Config = &p
	case PhaseVerify:
		var p VerifyPhase
		if err := node.Decode(&p); err != nil {
			return err
		}
		e.Config = &p
	case "":
		return fmt.Errorf("pipeline phase at line %d is missing a kind", node.Line)
	default:
		return fmt.Errorf("unknown pipeline phase kind %q at line %d", probe.Kind, node.Line)
	}
	return nil
}

// ParsePipeline decodes a pipeline document and applies environment model
// overrides. The result is not yet validated; see [Pipeline.Validate].
func ParsePipeline(data []byte) (*Pipeline, error) {
	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing pipeline document: %w", err)
	}

	if v := os.Getenv(EnvPrimaryModel); v != "" {
		p.PrimaryModel = v
	}
	if v := os.Getenv(EnvReviewModel); v != "" {
		p.ReviewModel = v
	}
	return &p, nil
}

// LoadPipeline reads, parses, and validates a pipeline document from disk.
func LoadPipeline(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline document: %w", err)
	}
	p, err := ParsePipeline(data)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
