package index

import (
	"fmt"
	"strings"
)

// FormatEvidence renders ranked evidence with ticket content as context
// blocks, for prompts and terminal output.
func FormatEvidence(set EvidenceSet, tickets map[string]TicketRecord) string {
	if len(set) == 0 {
		return "No similar tickets found."
	}

	var sb strings.Builder
	for _, ev := range set {
		sb.WriteString(fmt.Sprintf("RELEVANT TICKET #%d (similarity: %.2f)\n", ev.Rank, ev.Similarity))

		t, ok := tickets[ev.TicketID]
		if !ok {
			sb.WriteString(fmt.Sprintf("Ticket %s (content unavailable)\n\n", ev.TicketID))
			continue
		}

		if key := t.Resolution[ResolutionIssueKey]; key != "" {
			sb.WriteString(fmt.Sprintf("Issue: %s\n", key))
		}
		if status := t.Resolution[ResolutionStatus]; status != "" {
			sb.WriteString(fmt.Sprintf("Status: %s\n", status))
		}
		if priority := t.Resolution[ResolutionPriority]; priority != "" {
			sb.WriteString(fmt.Sprintf("Priority: %s\n", priority))
		}

		sb.WriteString("\n")
		sb.WriteString(t.Text)
		sb.WriteString("\n\n")
	}

	return sb.String()
}
