package agentqueue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/example/triage/internal/db"
	"github.com/example/triage/internal/feedback"
	"github.com/example/triage/internal/policy"
	"github.com/example/triage/internal/triage"
)

func setupTest(t *testing.T) (*Store, *feedback.LabelStore) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database), feedback.NewLabelStore(database)
}

func escalatedDecision(queryID string) triage.DecisionRecord {
	return triage.DecisionRecord{
		QueryID:       queryID,
		Question:      "why was my account suspended?",
		Confidence:    0.41,
		Route:         policy.RouteEscalate,
		ThresholdUsed: 0.6,
	}
}

func TestEnqueueAndGet(t *testing.T) {
	store, _ := setupTest(t)
	ctx := context.Background()

	item, err := store.Enqueue(ctx, escalatedDecision("q-1"))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if item.ID == "" {
		t.Error("expected non-empty ID")
	}
	if item.Status != StatusPending {
		t.Errorf("expected status pending, got %s", item.Status)
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched == nil {
		t.Fatal("GetByID returned nil")
	}
	if fetched.QueryID != "q-1" || fetched.Question != "why was my account suspended?" {
		t.Errorf("unexpected item: %+v", fetched)
	}
	if fetched.Confidence != 0.41 {
		t.Errorf("expected confidence 0.41, got %v", fetched.Confidence)
	}
}

func TestEnqueueDuplicateQuery(t *testing.T) {
	store, _ := setupTest(t)
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, escalatedDecision("q-1")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := store.Enqueue(ctx, escalatedDecision("q-1")); err == nil {
		t.Fatal("expected error enqueueing the same query twice")
	}
}

func TestClaim(t *testing.T) {
	store, _ := setupTest(t)
	ctx := context.Background()

	item, _ := store.Enqueue(ctx, escalatedDecision("q-1"))

	if err := store.Claim(ctx, item.ID, "alice"); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	fetched, _ := store.GetByID(ctx, item.ID)
	if fetched.Status != StatusClaimed {
		t.Errorf("expected claimed, got %s", fetched.Status)
	}
	if fetched.Agent != "alice" {
		t.Errorf("expected agent alice, got %q", fetched.Agent)
	}

	// A second claim loses.
	if err := store.Claim(ctx, item.ID, "bob"); err == nil {
		t.Fatal("expected error claiming an already claimed item")
	}
}

func TestResolve(t *testing.T) {
	store, _ := setupTest(t)
	ctx := context.Background()

	item, _ := store.Enqueue(ctx, escalatedDecision("q-1"))
	store.Claim(ctx, item.ID, "alice")

	resolved, err := store.Resolve(ctx, item.ID, "alice", "restored the account, billing glitch")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Status != StatusResolved {
		t.Errorf("expected resolved, got %s", resolved.Status)
	}
	if resolved.Resolution != "restored the account, billing glitch" {
		t.Errorf("unexpected resolution: %q", resolved.Resolution)
	}

	if _, err := store.Resolve(ctx, item.ID, "bob", "again"); err == nil {
		t.Fatal("expected error resolving an already resolved item")
	}
}

func TestResolveWithoutClaim(t *testing.T) {
	store, _ := setupTest(t)
	ctx := context.Background()

	item, _ := store.Enqueue(ctx, escalatedDecision("q-1"))

	resolved, err := store.Resolve(ctx, item.ID, "carol", "sent password reset")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Status != StatusResolved || resolved.Agent != "carol" {
		t.Errorf("unexpected item after direct resolve: %+v", resolved)
	}
}

func TestListByStatus(t *testing.T) {
	store, _ := setupTest(t)
	ctx := context.Background()

	a, _ := store.Enqueue(ctx, escalatedDecision("q-1"))
	store.Enqueue(ctx, escalatedDecision("q-2"))
	store.Enqueue(ctx, escalatedDecision("q-3"))
	store.Claim(ctx, a.ID, "alice")

	pending, err := store.List(ctx, ListFilter{Status: StatusPending})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("expected 2 pending, got %d", len(pending))
	}

	claimed, _ := store.List(ctx, ListFilter{Status: StatusClaimed, Agent: "alice"})
	if len(claimed) != 1 || claimed[0].QueryID != "q-1" {
		t.Errorf("expected q-1 claimed by alice, got %+v", claimed)
	}

	limited, _ := store.List(ctx, ListFilter{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("expected 1, got %d", len(limited))
	}
}

func TestStats(t *testing.T) {
	store, _ := setupTest(t)
	ctx := context.Background()

	a, _ := store.Enqueue(ctx, escalatedDecision("q-1"))
	store.Enqueue(ctx, escalatedDecision("q-2"))
	store.Claim(ctx, a.ID, "alice")

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Pending != 1 || stats.Claimed != 1 || stats.Resolved != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.OldestPending == nil {
		t.Error("expected non-nil oldest_pending")
	}

	count, _ := store.PendingCount(ctx)
	if count != 1 {
		t.Errorf("expected 1 pending, got %d", count)
	}
}

// HTTP handler tests

func TestRoute_ResolveAppendsLabel(t *testing.T) {
	store, labels := setupTest(t)
	ctx := context.Background()

	item, _ := store.Enqueue(ctx, escalatedDecision("q-1"))

	r := chi.NewRouter()
	RegisterRoutes(r, store, labels)

	body := `{"agent":"alice","resolution":"pointed at the docs","label":"escalation_unnecessary"}`
	req := httptest.NewRequest("POST", "/api/queue/"+item.ID+"/resolve", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resolved Item
	if err := json.Unmarshal(w.Body.Bytes(), &resolved); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resolved.Status != StatusResolved {
		t.Errorf("expected resolved, got %s", resolved.Status)
	}

	got, err := labels.ForQueryIDs(ctx, []string{"q-1"})
	if err != nil {
		t.Fatalf("ForQueryIDs: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 label, got %d", len(got))
	}
	if got[0].Label != triage.LabelEscalationUnnecessary {
		t.Errorf("expected escalation_unnecessary, got %s", got[0].Label)
	}
	if got[0].Comment != "pointed at the docs" {
		t.Errorf("unexpected comment: %q", got[0].Comment)
	}
}

func TestRoute_ResolveRejectsBadLabel(t *testing.T) {
	store, labels := setupTest(t)
	ctx := context.Background()

	item, _ := store.Enqueue(ctx, escalatedDecision("q-1"))

	r := chi.NewRouter()
	RegisterRoutes(r, store, labels)

	body := `{"agent":"alice","resolution":"done","label":"accepted"}`
	req := httptest.NewRequest("POST", "/api/queue/"+item.ID+"/resolve", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	// The item is untouched.
	fetched, _ := store.GetByID(ctx, item.ID)
	if fetched.Status != StatusPending {
		t.Errorf("expected still pending, got %s", fetched.Status)
	}
}
