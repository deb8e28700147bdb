package config

import (
	"strings"
	"testing"
)

const sampleDoc = `
primaryModel: gpt-5
reviewModel: claude-sonnet-4
agents:
  architect: "builtin:architect"
  planner: "builtin:planner"
  engineer: "builtin:engineer"
  critic: "You review specs harshly."
pipeline:
  - kind: spec
    agent: architect
    reviews:
      - reviewer: critic
        maxIterations: 3
        approvalKeyword: APPROVED
        clarificationKeyword: "CLARIFICATION NEEDED"
        clarificationAgent: architect
  - kind: decompose
    agent: planner
  - kind: design
    agent: architect
    condition: frontend-tasks
    reviews:
      - reviewer: critic
        maxIterations: 2
        approvalKeyword: APPROVED
  - kind: implement
    agent: engineer
    reviews:
      - reviewer: critic
        maxIterations: 3
        approvalKeyword: LGTM
    qa:
      reviewer: critic
      maxIterations: 2
      approvalKeyword: "ALL TESTS PASSED"
  - kind: cross-model-review
    reviewer: critic
    fixAgent: engineer
    maxIterations: 2
    approvalKeyword: APPROVED
  - kind: verify
    fixAgent: engineer
    maxIterations: 3
verify:
  - go build ./...
  - go test ./...
`

func TestParsePipelineTaggedVariants(t *testing.T) {
	p, err := ParsePipeline([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("ParsePipeline: %v", err)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	wantKinds := []PhaseKind{
		PhaseSpec, PhaseDecompose, PhaseDesign,
		PhaseImplement, PhaseCrossModelReview, PhaseVerify,
	}
	if len(p.Phases) != len(wantKinds) {
		t.Fatalf("got %d phases, want %d", len(p.Phases), len(wantKinds))
	}
	for i, want := range wantKinds {
		if got := p.Phases[i].Config.Kind(); got != want {
			t.Errorf("phase %d kind = %q, want %q", i, got, want)
		}
	}

	spec, ok := p.Phases[0].Config.(*SpecPhase)
	if !ok {
		t.Fatalf("phase 0 is %T, want *SpecPhase", p.Phases[0].Config)
	}
	if spec.Agent != "architect" {
		t.Errorf("spec agent = %q, want architect", spec.Agent)
	}
	if len(spec.Reviews) != 1 || spec.Reviews[0].ClarificationAgent != "architect" {
		t.Errorf("spec reviews not decoded: %+v", spec.Reviews)
	}

	design, ok := p.Phases[2].Config.(*DesignPhase)
	if !ok {
		t.Fatalf("phase 2 is %T, want *DesignPhase", p.Phases[2].Config)
	}
	if design.Condition != CondFrontendTasks {
		t.Errorf("design condition = %q, want %q", design.Condition, CondFrontendTasks)
	}

	impl, ok := p.Phases[3].Config.(*ImplementPhase)
	if !ok {
		t.Fatalf("phase 3 is %T, want *ImplementPhase", p.Phases[3].Config)
	}
	if impl.QA == nil || impl.QA.ApprovalKeyword != "ALL TESTS PASSED" {
		t.Errorf("implement qa not decoded: %+v", impl.QA)
	}

	if len(p.Verify) != 2 {
		t.Errorf("verify commands = %v, want 2 entries", p.Verify)
	}
}

func TestParsePipelineUnknownKind(t *testing.T) {
	doc := `
pipeline:
  - kind: transmogrify
    agent: who
`
	if _, err := ParsePipeline([]byte(doc)); err == nil {
		t.Fatal("expected error for unknown phase kind")
	} else if !strings.Contains(err.Error(), "transmogrify") {
		t.Errorf("error should name the unknown kind, got: %v", err)
	}
}

func TestParsePipelineMissingKind(t *testing.T) {
	doc := `
pipeline:
  - agent: who
`
	if _, err := ParsePipeline([]byte(doc)); err == nil {
		t.Fatal("expected error for phase without kind")
	}
}

func TestParsePipelineEnvOverrides(t *testing.T) {
	t.Setenv(EnvPrimaryModel, "override-primary")
	t.Setenv(EnvReviewModel, "override-review")

	p, err := ParsePipeline([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("ParsePipeline: %v", err)
	}
	if p.PrimaryModel != "override-primary" {
		t.Errorf("PrimaryModel = %q, want env override", p.PrimaryModel)
	}
	if p.ReviewModel != "override-review" {
		t.Errorf("ReviewModel = %q, want env override", p.ReviewModel)
	}
}

func TestPhaseID(t *testing.T) {
	if got := PhaseID(PhaseCrossModelReview, 4); got != "cross-model-review-4" {
		t.Errorf("PhaseID = %q", got)
	}
}

func TestAgentSpecResolve(t *testing.T) {
	t.Run("inline", func(t *testing.T) {
		got, err := AgentSpec("do the thing").Resolve()
		if err != nil || got != "do the thing" {
			t.Errorf("Resolve = %q, %v", got, err)
		}
	})
	t.Run("builtin", func(t *testing.T) {
		got, err := AgentSpec("builtin:engineer").Resolve()
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if !strings.Contains(got, "engineer") {
			t.Errorf("builtin engineer instructions look wrong: %q", got)
		}
	})
	t.Run("unknown builtin", func(t *testing.T) {
		if _, err := AgentSpec("builtin:nope").Resolve(); err == nil {
			t.Error("expected error for unknown builtin")
		}
	})
	t.Run("missing file", func(t *testing.T) {
		if _, err := AgentSpec("file:/does/not/exist.md").Resolve(); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
