package mcp

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/example/triage/internal/agentqueue"
	"github.com/example/triage/internal/confidence"
	"github.com/example/triage/internal/db"
	"github.com/example/triage/internal/decisionlog"
	"github.com/example/triage/internal/feedback"
	"github.com/example/triage/internal/index"
	"github.com/example/triage/internal/notify"
	"github.com/example/triage/internal/policy"
	"github.com/example/triage/internal/triage"
)

// stubEmbedder produces deterministic vectors for index seeding.
type stubEmbedder struct{ dims int }

func (e *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, e.dims)
		for j, ch := range text {
			vec[(int(ch)+j)%e.dims]++
		}
		var norm float64
		for _, v := range vec {
			norm += float64(v * v)
		}
		norm = math.Sqrt(norm)
		for j := range vec {
			vec[j] = float32(float64(vec[j]) / norm)
		}
		out[i] = vec
	}
	return out, nil
}

func (e *stubEmbedder) Dimensions() int { return e.dims }
func (e *stubEmbedder) Name() string    { return "stub" }

type fakeRetriever struct {
	set index.EvidenceSet
	err error
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, _ int) (index.EvidenceSet, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.set, nil
}

func newTestIndex(t *testing.T) *index.TicketIndex {
	t.Helper()
	ix, err := index.NewTicketIndex(&stubEmbedder{dims: 16})
	if err != nil {
		t.Fatalf("creating index: %v", err)
	}
	tickets := []index.TicketRecord{
		{
			ID:   "SUP-101",
			Text: "Issue Key: SUP-101\nSummary: Password reset link expires immediately",
			Resolution: map[string]string{
				index.ResolutionStatus:   "Done",
				index.ResolutionPriority: "High",
			},
		},
		{
			ID:   "SUP-102",
			Text: "Issue Key: SUP-102\nSummary: Billing page shows stale invoice",
		},
	}
	if err := ix.AddTickets(context.Background(), tickets, 1); err != nil {
		t.Fatalf("seeding index: %v", err)
	}
	return ix
}

func newTestServer(t *testing.T, retriever triage.Retriever) (*Server, *agentqueue.Store) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	decisions := decisionlog.NewStore(database)
	labels := feedback.NewLabelStore(database)
	policies := policy.NewStore(database)
	queue := agentqueue.NewStore(database)
	notices := notify.NewStore(database)

	engine := policy.NewEngine(policy.Parameters{Threshold: 0.6, CalibrationWindow: 200, Version: 1})
	model := confidence.NewModel(confidence.DefaultWeights(), confidence.DefaultAgreementFloor)
	orchestrator := triage.NewOrchestrator(retriever, model, engine, decisions, nil, triage.Config{})
	svc := feedback.NewService(decisions, labels, policies, engine, feedback.CalibrationConfig{})
	dispatcher := notify.NewDispatcher(notices, notify.DispatcherConfig{})

	srv := NewServer(Deps{
		Retriever:    retriever,
		Index:        newTestIndex(t),
		Orchestrator: orchestrator,
		Engine:       engine,
		Policies:     policies,
		Feedback:     svc,
		Queue:        queue,
		Dispatcher:   dispatcher,
	})
	return srv, queue
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("tool result has no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", result.Content[0])
	}
	return text.Text
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name     string
		tool     mcp.Tool
		wantName string
	}{
		{"search_tickets", searchTicketsTool, "search_tickets"},
		{"triage_question", triageQuestionTool, "triage_question"},
		{"get_policy", getPolicyTool, "get_policy"},
		{"recalibrate", recalibrateTool, "recalibrate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tool.Name != tt.wantName {
				t.Errorf("tool name = %q, want %q", tt.tool.Name, tt.wantName)
			}
			if tt.tool.Description == "" {
				t.Error("tool description should not be empty")
			}
		})
	}
}

func TestHandleSearchTickets(t *testing.T) {
	evidence := index.NewEvidenceSet([]index.Evidence{
		{TicketID: "SUP-101", Similarity: 0.91},
		{TicketID: "SUP-102", Similarity: 0.55},
	})
	srv, _ := newTestServer(t, &fakeRetriever{set: evidence})
	ctx := context.Background()

	t.Run("basic search", func(t *testing.T) {
		result, err := srv.handleSearchTickets(ctx, callRequest(map[string]any{"query": "password reset"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected tool error: %v", result.Content)
		}
		text := resultText(t, result)
		for _, want := range []string{"Found 2 ticket(s)", "SUP-101", "91.0%", "Status: Done", "stale invoice"} {
			if !strings.Contains(text, want) {
				t.Errorf("result missing %q:\n%s", want, text)
			}
		}
	})

	t.Run("missing query", func(t *testing.T) {
		result, err := srv.handleSearchTickets(ctx, callRequest(map[string]any{}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsError {
			t.Error("expected error for missing query")
		}
	})

	t.Run("empty index", func(t *testing.T) {
		emptySrv, _ := newTestServer(t, &fakeRetriever{set: index.EvidenceSet{}})
		result, err := emptySrv.handleSearchTickets(ctx, callRequest(map[string]any{"query": "anything"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Error("empty results should not be an error")
		}
		if !strings.Contains(resultText(t, result), "No matching tickets") {
			t.Error("missing empty-index notice")
		}
	})
}

func TestHandleTriageQuestion(t *testing.T) {
	ctx := context.Background()

	t.Run("auto-respond", func(t *testing.T) {
		evidence := index.NewEvidenceSet([]index.Evidence{
			{TicketID: "SUP-101", Similarity: 0.92},
			{TicketID: "SUP-102", Similarity: 0.40},
		})
		srv, queue := newTestServer(t, &fakeRetriever{set: evidence})

		result, err := srv.handleTriageQuestion(ctx, callRequest(map[string]any{"question": "How do I reset my password?"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected tool error: %v", result.Content)
		}
		text := resultText(t, result)
		for _, want := range []string{"Route: auto_respond", "threshold 0.600", "1. SUP-101 (similarity 0.92)"} {
			if !strings.Contains(text, want) {
				t.Errorf("result missing %q:\n%s", want, text)
			}
		}

		stats, err := queue.Stats(ctx)
		if err != nil {
			t.Fatalf("queue stats: %v", err)
		}
		if stats.Pending != 0 {
			t.Errorf("queue pending = %d, want 0", stats.Pending)
		}
	})

	t.Run("escalation queues the question", func(t *testing.T) {
		evidence := index.NewEvidenceSet([]index.Evidence{
			{TicketID: "SUP-102", Similarity: 0.30},
		})
		srv, queue := newTestServer(t, &fakeRetriever{set: evidence})

		result, err := srv.handleTriageQuestion(ctx, callRequest(map[string]any{"question": "My invoice is wrong"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		text := resultText(t, result)
		for _, want := range []string{"Route: escalate", "queued for a human agent"} {
			if !strings.Contains(text, want) {
				t.Errorf("result missing %q:\n%s", want, text)
			}
		}

		stats, err := queue.Stats(ctx)
		if err != nil {
			t.Fatalf("queue stats: %v", err)
		}
		if stats.Pending != 1 {
			t.Errorf("queue pending = %d, want 1", stats.Pending)
		}
	})

	t.Run("missing question", func(t *testing.T) {
		srv, _ := newTestServer(t, &fakeRetriever{})
		result, err := srv.handleTriageQuestion(ctx, callRequest(map[string]any{}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsError {
			t.Error("expected error for missing question")
		}
	})
}

func TestHandleGetPolicy(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRetriever{})
	ctx := context.Background()

	result, err := srv.handleGetPolicy(ctx, callRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %v", result.Content)
	}
	text := resultText(t, result)
	for _, want := range []string{"Active policy v1", "Threshold: 0.600", "Calibration window: 200"} {
		if !strings.Contains(text, want) {
			t.Errorf("result missing %q:\n%s", want, text)
		}
	}
}

func TestHandleRecalibrate(t *testing.T) {
	evidence := index.NewEvidenceSet([]index.Evidence{
		{TicketID: "SUP-101", Similarity: 0.92},
		{TicketID: "SUP-102", Similarity: 0.40},
	})
	srv, _ := newTestServer(t, &fakeRetriever{set: evidence})
	ctx := context.Background()

	// Seed decisions through the pipeline so the window has data.
	for i := 0; i < 4; i++ {
		result, err := srv.handleTriageQuestion(ctx, callRequest(map[string]any{
			"question": fmt.Sprintf("How do I reset my password? (%d)", i),
		}))
		if err != nil || result.IsError {
			t.Fatalf("seeding decision %d: err=%v result=%v", i, err, result)
		}
	}

	result, err := srv.handleRecalibrate(ctx, callRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %v", result.Content)
	}
	text := resultText(t, result)
	for _, want := range []string{"Policy v2 installed", "Threshold: 0.600 -> 0.600", "Reason:"} {
		if !strings.Contains(text, want) {
			t.Errorf("result missing %q:\n%s", want, text)
		}
	}
}
