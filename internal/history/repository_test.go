package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/droid-agent/internal/infrastructure/database"
	_ "github.com/nerrad567/droid-agent/migrations" // register embedded schema
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "history.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewRepository(db)
}

func TestRecordAndRecent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	entries := []Entry{
		{RequestID: "r1", ActionType: "click", Success: true, Message: "click performed", Duration: 120 * time.Millisecond},
		{RequestID: "r2", ActionType: "swipe", Success: false, Message: "gesture cancelled", Duration: 300 * time.Millisecond},
		{RequestID: "r3", ActionType: "click", Success: true, Message: "click performed", Duration: 80 * time.Millisecond},
	}
	for _, e := range entries {
		if err := repo.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	recent, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("Recent() returned %d entries, want 3", len(recent))
	}
	// Newest first.
	if recent[0].RequestID != "r3" || recent[2].RequestID != "r1" {
		t.Errorf("order = %s, %s, %s", recent[0].RequestID, recent[1].RequestID, recent[2].RequestID)
	}
	if recent[1].Success {
		t.Error("swipe entry recorded as success")
	}
	if recent[2].Duration != 120*time.Millisecond {
		t.Errorf("Duration = %v", recent[2].Duration)
	}
	if recent[0].ExecutedAt.IsZero() {
		t.Error("ExecutedAt not populated")
	}
}

func TestRecentByAction(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	repo.Record(ctx, Entry{ActionType: "click", Success: true})  //nolint:errcheck
	repo.Record(ctx, Entry{ActionType: "swipe", Success: true})  //nolint:errcheck
	repo.Record(ctx, Entry{ActionType: "click", Success: false}) //nolint:errcheck

	clicks, err := repo.RecentByAction(ctx, "click", 10)
	if err != nil {
		t.Fatalf("RecentByAction() error = %v", err)
	}
	if len(clicks) != 2 {
		t.Fatalf("RecentByAction() returned %d entries, want 2", len(clicks))
	}
	for _, e := range clicks {
		if e.ActionType != "click" {
			t.Errorf("ActionType = %q", e.ActionType)
		}
	}
}

func TestPrune(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	repo.Record(ctx, Entry{ActionType: "click", ExecutedAt: old})        //nolint:errcheck
	repo.Record(ctx, Entry{ActionType: "click", ExecutedAt: time.Now()}) //nolint:errcheck

	pruned, err := repo.Prune(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if pruned != 1 {
		t.Errorf("Prune() = %d, want 1", pruned)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}
