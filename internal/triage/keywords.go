package triage

import "strings"

// DefaultHumanRequestKeywords are phrases that count as an explicit request
// for a human agent.
var DefaultHumanRequestKeywords = []string{
	"speak to human",
	"talk to agent",
	"real person",
	"human agent",
}

// containsHumanRequest reports whether the question explicitly asks for a
// human. Matching is case-insensitive substring search.
func containsHumanRequest(question string, keywords []string) bool {
	q := strings.ToLower(question)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(q, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
