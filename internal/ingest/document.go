package ingest

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/example/triage/internal/index"
	"github.com/example/triage/internal/llm"
)

const (
	// maxResolutionChars caps the merged comments of a single ticket.
	maxResolutionChars = 5000

	// maxDocumentChars keeps a document inside the embedding model's input
	// window, at roughly four characters per token.
	maxDocumentChars = 28000

	truncationMarker = "... [truncated due to length]"
)

// Document renders a ticket into the text that gets embedded and stored.
func Document(t Ticket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Issue Key: %s\n", orNA(t.IssueKey))
	fmt.Fprintf(&b, "Summary: %s\n", orNA(t.Summary))
	fmt.Fprintf(&b, "Description: %s\n", orNA(t.Description))
	fmt.Fprintf(&b, "Status: %s\n", orNA(t.Status))
	fmt.Fprintf(&b, "Resolution: %s", truncate(t.Comments, maxResolutionChars))

	return truncate(b.String(), maxDocumentChars)
}

// Record converts a ticket into its index representation. The issue key
// doubles as the document id, which is what makes re-ingestion replace
// rather than duplicate.
func Record(t Ticket) index.TicketRecord {
	return index.TicketRecord{
		ID:   t.IssueKey,
		Text: Document(t),
		Resolution: map[string]string{
			index.ResolutionIssueKey: t.IssueKey,
			index.ResolutionStatus:   t.Status,
			index.ResolutionPriority: t.Priority,
		},
	}
}

// Estimate previews what embedding a set of tickets would cost.
type Estimate struct {
	Tickets int     `json:"tickets"`
	Tokens  int     `json:"tokens"`
	CostUSD float64 `json:"cost_usd"`
}

// EstimateEmbedding totals the token count of every ticket document and
// prices it for the given embedding model.
func EstimateEmbedding(tickets []Ticket, model string) Estimate {
	est := Estimate{Tickets: len(tickets)}
	for _, t := range tickets {
		est.Tokens += llm.EstimateTokens(Document(t))
	}
	est.CostUSD = llm.EstimateCost(model, est.Tokens, 0)
	return est
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// truncate cuts s at limit bytes, backing up to a rune boundary, and
// appends a marker so truncation is visible in the stored document.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncationMarker
}
