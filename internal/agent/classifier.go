package agent

import "strings"

// Classifier detects discrete decisions embedded in free-text agent
// responses. The keyword-in-free-text protocol is inherently fuzzy, so it
// lives behind this narrow interface; a structured response envelope can
// replace it without touching the loop driver.
type Classifier interface {
	// Matches reports whether the response contains the keyword,
	// case-insensitively. An empty keyword never matches.
	Matches(response, keyword string) bool

	// Question extracts the embedded question from a response that
	// matched a clarification keyword: everything after the keyword's
	// first occurrence, or the whole response when nothing follows it.
	Question(response, keyword string) string
}

// KeywordClassifier implements the case-insensitive substring protocol.
type KeywordClassifier struct{}

func (KeywordClassifier) Matches(response, keyword string) bool {
	if keyword == "" {
		return false
	}
	return strings.Contains(strings.ToLower(response), strings.ToLower(keyword))
}

func (KeywordClassifier) Question(response, keyword string) string {
	lower := strings.ToLower(response)
	idx := strings.Index(lower, strings.ToLower(keyword))
	if idx < 0 {
		return strings.TrimSpace(response)
	}
	rest := strings.TrimSpace(response[idx+len(keyword):])
	rest = strings.TrimLeft(rest, ":- \t\n")
	if rest == "" {
		return strings.TrimSpace(response)
	}
	return rest
}
