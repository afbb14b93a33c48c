package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/slack-go/slack"

	"github.com/example/triage/internal/db"
	"github.com/example/triage/internal/policy"
	"github.com/example/triage/internal/triage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func sampleEscalation() Notification {
	return EscalationEvent(triage.DecisionRecord{
		QueryID:       "q-1",
		Question:      "Where is my refund?",
		Confidence:    0.42,
		Route:         policy.RouteEscalate,
		ThresholdUsed: 0.6,
	})
}

func TestStoreCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	n := sampleEscalation()
	n.CreatedAt = time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	created, err := store.Create(ctx, n)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected a generated id")
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil {
		t.Fatal("notification not found after create")
	}
	if got.Type != TypeEscalation || got.Severity != SeverityWarning {
		t.Errorf("got type %s severity %s", got.Type, got.Severity)
	}
	if got.QueryID != "q-1" {
		t.Errorf("QueryID = %q, want q-1", got.QueryID)
	}
	if got.Delivered {
		t.Error("new notification should not be delivered")
	}
	if !got.CreatedAt.Equal(n.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, n.CreatedAt)
	}
}

func TestStoreGetMissing(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got != nil {
		t.Fatalf("got %+v, want nil", got)
	}
}

func TestStoreListFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	for i, n := range []Notification{
		{Type: TypeEscalation, Severity: SeverityWarning, Title: "first"},
		{Type: TypeEscalation, Severity: SeverityWarning, Title: "second", Delivered: true},
		{Type: TypeRecalibration, Severity: SeverityInfo, Title: "third"},
	} {
		n.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if _, err := store.Create(ctx, n); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	all, err := store.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("listed %d notifications, want 3", len(all))
	}
	if all[0].Title != "third" {
		t.Errorf("newest first, got %q", all[0].Title)
	}

	warnings, err := store.List(ctx, ListFilter{Severity: SeverityWarning})
	if err != nil {
		t.Fatalf("List by severity: %v", err)
	}
	if len(warnings) != 2 {
		t.Errorf("listed %d warnings, want 2", len(warnings))
	}

	delivered := true
	done, err := store.List(ctx, ListFilter{Delivered: &delivered})
	if err != nil {
		t.Fatalf("List by delivered: %v", err)
	}
	if len(done) != 1 || done[0].Title != "second" {
		t.Errorf("delivered filter returned %+v", done)
	}

	limited, err := store.List(ctx, ListFilter{Limit: 1})
	if err != nil {
		t.Fatalf("List with limit: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit ignored, got %d", len(limited))
	}
}

func TestStorePendingOldestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	for i, title := range []string{"older", "newer"} {
		n := sampleEscalation()
		n.Title = title
		n.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if _, err := store.Create(ctx, n); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	pending, err := store.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 2 || pending[0].Title != "older" {
		t.Fatalf("pending = %+v, want oldest first", pending)
	}
}

func TestMarkDeliveredUnknown(t *testing.T) {
	store := newTestStore(t)
	if err := store.MarkDelivered(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unknown notification")
	}
}

func TestDispatchDeliversWebhook(t *testing.T) {
	store := newTestStore(t)

	var mu sync.Mutex
	var received []Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var n Notification
		if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
			t.Errorf("decoding webhook payload: %v", err)
		}
		mu.Lock()
		received = append(received, n)
		mu.Unlock()
	}))
	defer srv.Close()

	d := NewDispatcher(store, DispatcherConfig{WebhookURL: srv.URL})

	n, err := d.Dispatch(context.Background(), sampleEscalation())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !n.Delivered {
		t.Error("notification should be marked delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("webhook received %d payloads, want 1", len(received))
	}
	if received[0].Type != TypeEscalation || received[0].QueryID != "q-1" {
		t.Errorf("webhook payload = %+v", received[0])
	}
}

func TestFlushRetriesFailedDeliveries(t *testing.T) {
	store := newTestStore(t)

	var mu sync.Mutex
	failing := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if failing {
			http.Error(w, "down", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	d := NewDispatcher(store, DispatcherConfig{WebhookURL: srv.URL})
	ctx := context.Background()

	n, err := d.Dispatch(ctx, sampleEscalation())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if n.Delivered {
		t.Fatal("delivery should have failed")
	}

	pending, err := store.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("%d pending notifications, want 1", len(pending))
	}

	mu.Lock()
	failing = false
	mu.Unlock()

	delivered, err := d.Flush(ctx)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if delivered != 1 {
		t.Errorf("Flush delivered %d, want 1", delivered)
	}

	pending, err = store.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending after flush: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("%d notifications still pending", len(pending))
	}
}

func TestDispatchSeverityFloor(t *testing.T) {
	store := newTestStore(t)

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	d := NewDispatcher(store, DispatcherConfig{WebhookURL: srv.URL, MinSeverity: SeverityWarning})

	n, err := d.Dispatch(context.Background(), IngestEvent(10, 0, 0))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if calls != 0 {
		t.Errorf("info event hit the webhook %d times", calls)
	}
	// Filtered events owe no delivery, so they are not pending either.
	if !n.Delivered {
		t.Error("filtered notification should count as delivered")
	}
}

type fakeSlack struct {
	mu       sync.Mutex
	channels []string
	err      error
}

func (f *fakeSlack) PostMessageContext(_ context.Context, channelID string, _ ...slack.MsgOption) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, channelID)
	return channelID, "", f.err
}

func TestDispatchDeliversToSlack(t *testing.T) {
	store := newTestStore(t)

	fake := &fakeSlack{}
	d := NewDispatcher(store, DispatcherConfig{SlackChannel: "C123"})
	d.SetSlack(fake)

	n, err := d.Dispatch(context.Background(), sampleEscalation())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !n.Delivered {
		t.Error("notification should be marked delivered")
	}
	if len(fake.channels) != 1 || fake.channels[0] != "C123" {
		t.Errorf("slack calls = %v, want one to C123", fake.channels)
	}
}

func TestDispatchSlackFailureStaysPending(t *testing.T) {
	store := newTestStore(t)

	fake := &fakeSlack{err: context.DeadlineExceeded}
	d := NewDispatcher(store, DispatcherConfig{SlackChannel: "C123"})
	d.SetSlack(fake)

	n, err := d.Dispatch(context.Background(), sampleEscalation())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if n.Delivered {
		t.Error("failed slack delivery should leave the notification pending")
	}
}

func TestRecalibrationEvent(t *testing.T) {
	prev := policy.Parameters{Threshold: 0.6, CalibrationWindow: 200, Version: 1}
	next := policy.Parameters{Threshold: 0.65, CalibrationWindow: 200, Version: 2}

	n := RecalibrationEvent(prev, next, "rejection rate above target")
	if n.Severity != SeverityWarning {
		t.Errorf("severity = %s, want warning for a threshold change", n.Severity)
	}
	if n.Title != "Policy recalibrated to v2" {
		t.Errorf("title = %q", n.Title)
	}

	same := RecalibrationEvent(prev, policy.Parameters{Threshold: 0.6, Version: 2}, "rates within targets")
	if same.Severity != SeverityInfo {
		t.Errorf("severity = %s, want info when threshold unchanged", same.Severity)
	}
}

func TestRoutes(t *testing.T) {
	store := newTestStore(t)
	d := NewDispatcher(store, DispatcherConfig{})

	created, err := store.Create(context.Background(), sampleEscalation())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	r := chi.NewRouter()
	RegisterRoutes(r, store, d)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notifications", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var listed []Notification
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("listed %d notifications, want 1", len(listed))
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notifications/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/notifications/"+created.ID+"/deliver", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("deliver status = %d", rec.Code)
	}
	got, err := store.GetByID(context.Background(), created.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID after deliver: %v", err)
	}
	if !got.Delivered {
		t.Error("notification should be delivered after POST /deliver")
	}

	// With no channels configured, flushing delivers trivially.
	if _, err := store.Create(context.Background(), sampleEscalation()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/notifications/flush", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("flush status = %d", rec.Code)
	}
	var flushed map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &flushed); err != nil {
		t.Fatalf("decoding flush response: %v", err)
	}
	if flushed["delivered"] != 1 {
		t.Errorf("flush delivered %d, want 1", flushed["delivered"])
	}
}
