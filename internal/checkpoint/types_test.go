package checkpoint

import "testing"

func TestMarkPhaseDone(t *testing.T) {
	cp := New("run-1", "")

	cp.MarkPhaseDone("spec-0")
	cp.MarkPhaseDone("spec-0") // idempotent
	cp.MarkPhaseDone("decompose-1")

	if len(cp.CompletedPhases) != 2 {
		t.Errorf("CompletedPhases = %v, want 2 entries", cp.CompletedPhases)
	}
	if !cp.IsPhaseDone("spec-0") || !cp.IsPhaseDone("decompose-1") {
		t.Error("marked phases should report done")
	}
	if cp.IsPhaseDone("implement-2") {
		t.Error("unmarked phase should not report done")
	}
}

func TestLoopID(t *testing.T) {
	tests := []struct {
		phaseID string
		stream  int
		role    string
		want    string
	}{
		{"spec-0", -1, "review-0", "spec-0/review-0"},
		{"implement-2", 1, "qa", "implement-2/stream-1/qa"},
		{"cross-model-review-4", -1, "global", "cross-model-review-4/global"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := LoopID(tt.phaseID, tt.stream, tt.role); got != tt.want {
				t.Errorf("LoopID = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSetIteration(t *testing.T) {
	cp := New("run-1", "")
	cp.SetIteration("spec-0/review-0", "draft", 2)

	p, ok := cp.Iteration("spec-0/review-0")
	if !ok {
		t.Fatal("Iteration should find recorded progress")
	}
	if p.Content != "draft" || p.CompletedIterations != 2 {
		t.Errorf("progress = %+v", p)
	}

	if _, ok := cp.Iteration("other"); ok {
		t.Error("Iteration should report absent for unknown loop")
	}
}

func TestClearIterations(t *testing.T) {
	cp := New("run-1", "")
	cp.SetIteration("implement-2/stream-0/review-0", "a", 1)
	cp.SetIteration("implement-2/stream-1/qa", "b", 1)
	cp.SetIteration("verify-3/fix", "c", 1)

	cp.ClearIterations("implement-2")

	if _, ok := cp.Iteration("implement-2/stream-0/review-0"); ok {
		t.Error("implement loop state should be cleared")
	}
	if _, ok := cp.Iteration("verify-3/fix"); !ok {
		t.Error("other phases' loop state should survive")
	}

	cp.ClearIterations("verify-3")
	if cp.IterationProgress != nil {
		t.Error("empty progress map should reset to nil for clean serialization")
	}
}

func TestSetResultGrowsSlots(t *testing.T) {
	cp := New("run-1", "")
	cp.SetResult(3, &StreamResult{Index: 1, Task: "b", Output: "done"})

	if len(cp.StreamResults) != 3 {
		t.Fatalf("StreamResults length = %d, want 3", len(cp.StreamResults))
	}
	if cp.Result(0) != nil || cp.Result(2) != nil {
		t.Error("untouched slots should be nil")
	}
	if r := cp.Result(1); r == nil || r.Output != "done" {
		t.Errorf("Result(1) = %+v", r)
	}
	if cp.Result(9) != nil {
		t.Error("out-of-range index should return nil")
	}
}
