package mcp

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/example/triage/internal/index"
	"github.com/example/triage/internal/notify"
	"github.com/example/triage/internal/policy"
)

// handleSearchTickets performs semantic search over the ticket index.
func (s *Server) handleSearchTickets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", 5)
	if limit <= 0 {
		limit = 5
	}

	set, err := s.deps.Retriever.Retrieve(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if len(set) == 0 {
		return mcp.NewToolResultText("No matching tickets found. The index may be empty; run `triage ingest` to load ticket history."), nil
	}

	tickets, err := s.deps.Index.Lookup(ctx, set.TicketIDs())
	if err != nil {
		// Rank and similarity are still useful without the content.
		tickets = nil
	}

	return mcp.NewToolResultText(formatTicketResults(set, tickets)), nil
}

// handleTriageQuestion runs a question through the full triage pipeline and
// queues escalations, exactly like the HTTP endpoint.
func (s *Server) handleTriageQuestion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}

	rec, err := s.deps.Orchestrator.Triage(ctx, question)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("triage failed: %v", err)), nil
	}

	escalated := rec.Route == policy.RouteEscalate
	if escalated {
		if _, err := s.deps.Queue.Enqueue(ctx, rec); err != nil {
			log.Printf("mcp: enqueueing %s: %v", rec.QueryID, err)
		}
		if _, err := s.deps.Dispatcher.Dispatch(ctx, notify.EscalationEvent(rec)); err != nil {
			log.Printf("mcp: notifying for %s: %v", rec.QueryID, err)
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Query %s\n", rec.QueryID))
	sb.WriteString(fmt.Sprintf("Route: %s\n", rec.Route))
	sb.WriteString(fmt.Sprintf("Confidence: %.3f (threshold %.3f)\n", rec.Confidence, rec.ThresholdUsed))

	if len(rec.Signals) > 0 {
		keys := make([]string, 0, len(rec.Signals))
		for k := range rec.Signals {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("Signals:\n")
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %s: %.3f\n", k, rec.Signals[k]))
		}
	}

	if len(rec.Evidence) > 0 {
		sb.WriteString("Evidence:\n")
		for _, ev := range rec.Evidence {
			sb.WriteString(fmt.Sprintf("  %d. %s (similarity %.2f)\n", ev.Rank, ev.TicketID, ev.Similarity))
		}
	}

	if escalated {
		sb.WriteString("The question was queued for a human agent.\n")
	}

	if request.GetBool("draft", false) && s.deps.Generator != nil {
		reply, err := s.deps.Generator.Generate(ctx, rec)
		if err != nil {
			sb.WriteString(fmt.Sprintf("\nDraft unavailable: %v\n", err))
		} else {
			sb.WriteString(fmt.Sprintf("\nDrafted reply (%s):\n%s\n", reply.Band, reply.Text))
		}
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// handleGetPolicy returns the live policy snapshot and recent history.
func (s *Server) handleGetPolicy(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	current := s.deps.Engine.Current()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Active policy v%d\n", current.Version))
	sb.WriteString(fmt.Sprintf("Threshold: %.3f\n", current.Threshold))
	sb.WriteString(fmt.Sprintf("Calibration window: %d decisions\n", current.CalibrationWindow))
	sb.WriteString("Questions scoring below the threshold escalate to a human; at or above it they are answered automatically.\n")

	history, err := s.deps.Policies.History(ctx, 5)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading policy history: %v", err)), nil
	}
	if len(history) > 0 {
		sb.WriteString("\nRecent versions:\n")
		for _, v := range history {
			sb.WriteString(fmt.Sprintf("  v%d: threshold %.3f (%s)\n", v.Version, v.Threshold, v.CreatedAt.Format("2006-01-02 15:04")))
		}
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// handleRecalibrate runs one recalibration round and reports the new policy.
func (s *Server) handleRecalibrate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.deps.Feedback.Run(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("recalibration failed: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Policy v%d installed\n", result.Parameters.Version))
	sb.WriteString(fmt.Sprintf("Threshold: %.3f -> %.3f\n", result.Previous.Threshold, result.Parameters.Threshold))
	sb.WriteString(fmt.Sprintf("Window: %d decisions, %d labeled auto-responses, %d labeled escalations\n",
		result.Stats.WindowSize, result.Stats.LabeledAutoResponses, result.Stats.LabeledEscalations))
	sb.WriteString(fmt.Sprintf("Reason: %s\n", result.Stats.Reason))

	return mcp.NewToolResultText(sb.String()), nil
}

// formatTicketResults converts evidence and ticket content into a rich text
// format optimized for AI agent consumption.
func formatTicketResults(set index.EvidenceSet, tickets map[string]index.TicketRecord) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d ticket(s):\n", len(set)))

	for _, ev := range set {
		sb.WriteString(fmt.Sprintf("\n--- Ticket %d ---\n", ev.Rank))
		sb.WriteString(fmt.Sprintf("ID: %s\n", ev.TicketID))
		sb.WriteString(fmt.Sprintf("Similarity: %.1f%%\n", ev.Similarity*100))

		t, ok := tickets[ev.TicketID]
		if !ok {
			continue
		}
		if status := t.Resolution[index.ResolutionStatus]; status != "" {
			sb.WriteString(fmt.Sprintf("Status: %s\n", status))
		}
		if priority := t.Resolution[index.ResolutionPriority]; priority != "" {
			sb.WriteString(fmt.Sprintf("Priority: %s\n", priority))
		}

		sb.WriteString("\n")
		sb.WriteString(t.Text)
		sb.WriteString("\n")
	}

	return sb.String()
}
