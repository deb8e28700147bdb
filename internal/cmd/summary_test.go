package cmd

import (
	"strings"
	"testing"

	"github.com/urbanisierung/copilot-swarm/internal/config"
	"github.com/urbanisierung/copilot-swarm/internal/engine"
)

func TestRenderSummary(t *testing.T) {
	s := &engine.Summary{
		RunID: "abc123",
		Phases: []engine.PhaseStatus{
			{ID: "spec-0", Kind: config.PhaseSpec, Status: "done"},
			{ID: "design-1", Kind: config.PhaseDesign, Status: "skipped: no frontend-tagged tasks"},
			{ID: "implement-2", Kind: config.PhaseImplement, Status: "done"},
		},
		StreamsTotal:  3,
		StreamsFailed: 1,
		Verification:  "passed",
	}

	out := renderSummary(s)
	for _, want := range []string{
		"abc123",
		"spec-0",
		"skipped: no frontend-tagged tasks",
		"2/3 completed",
		"1 failed",
		"Verification: passed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestRenderSummaryWithoutStreams(t *testing.T) {
	s := &engine.Summary{
		RunID:  "abc123",
		Phases: []engine.PhaseStatus{{ID: "spec-0", Kind: config.PhaseSpec, Status: "done"}},
	}

	out := renderSummary(s)
	if strings.Contains(out, "Streams") {
		t.Errorf("streams line rendered for a run without streams:\n%s", out)
	}
	if strings.Contains(out, "Verification") {
		t.Errorf("verification line rendered without a verify phase:\n%s", out)
	}
}
