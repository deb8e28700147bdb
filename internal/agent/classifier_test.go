package agent

import "testing"

func TestClassifierMatches(t *testing.T) {
	c := KeywordClassifier{}

	tests := []struct {
		name     string
		response string
		keyword  string
		want     bool
	}{
		{"exact", "APPROVED", "APPROVED", true},
		{"embedded", "Looks good. APPROVED", "APPROVED", true},
		{"case insensitive", "looks good, approved!", "APPROVED", true},
		{"absent", "needs more work on error handling", "APPROVED", false},
		{"empty keyword", "anything", "", false},
		{"multi-word keyword", "Great: all tests passed here.", "ALL TESTS PASSED", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Matches(tt.response, tt.keyword); got != tt.want {
				t.Errorf("Matches(%q, %q) = %v, want %v", tt.response, tt.keyword, got, tt.want)
			}
		})
	}
}

func TestClassifierQuestion(t *testing.T) {
	c := KeywordClassifier{}

	tests := []struct {
		name     string
		response string
		keyword  string
		want     string
	}{
		{
			"after keyword",
			"CLARIFICATION NEEDED: should the cache be per-user?",
			"CLARIFICATION NEEDED",
			"should the cache be per-user?",
		},
		{
			"keyword mid-text",
			"I can't proceed. clarification needed - which database?",
			"CLARIFICATION NEEDED",
			"which database?",
		},
		{
			"nothing after keyword",
			"Is retry idempotent? CLARIFICATION NEEDED",
			"CLARIFICATION NEEDED",
			"Is retry idempotent? CLARIFICATION NEEDED",
		},
		{
			"keyword absent",
			"which database?",
			"CLARIFICATION NEEDED",
			"which database?",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Question(tt.response, tt.keyword); got != tt.want {
				t.Errorf("Question = %q, want %q", got, tt.want)
			}
		})
	}
}
