package policy

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/example/triage/internal/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestStore_SaveAndLatest(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, ok, err := store.Latest(ctx); err != nil || ok {
		t.Fatalf("Latest on empty store: ok=%v err=%v, want ok=false err=nil", ok, err)
	}

	v1 := Parameters{Threshold: 0.6, CalibrationWindow: 200, Version: 1}
	if err := store.Save(ctx, v1, nil); err != nil {
		t.Fatalf("Save v1: %v", err)
	}
	v2 := Parameters{Threshold: 0.7, CalibrationWindow: 200, Version: 2}
	if err := store.Save(ctx, v2, json.RawMessage(`{"rejection_rate":0.3}`)); err != nil {
		t.Fatalf("Save v2: %v", err)
	}

	latest, ok, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !ok {
		t.Fatal("Latest: no version found")
	}
	if latest != v2 {
		t.Errorf("Latest: got %+v, want %+v", latest, v2)
	}

	// Duplicate versions violate the primary key.
	if err := store.Save(ctx, v2, nil); err == nil {
		t.Error("Save duplicate version succeeded, want error")
	}
}

func TestStore_History(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i := int64(1); i <= 5; i++ {
		p := Parameters{Threshold: 0.5 + float64(i)/100, CalibrationWindow: 100, Version: i}
		if err := store.Save(ctx, p, nil); err != nil {
			t.Fatalf("Save v%d: %v", i, err)
		}
	}

	records, err := store.History(ctx, 3)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("History: got %d records, want 3", len(records))
	}
	if records[0].Version != 5 || records[2].Version != 3 {
		t.Errorf("History order: got versions %d..%d, want 5..3", records[0].Version, records[2].Version)
	}
	if records[0].CreatedAt.IsZero() {
		t.Error("History: created_at not populated")
	}
}
