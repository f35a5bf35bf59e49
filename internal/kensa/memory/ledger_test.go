package memory

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// setupTestDB creates an in-memory SQLite database with the memories table
// and returns the DB handle. The caller should defer db.Close().
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory sqlite: %v", err)
	}
	_, err = db.Exec(`
		CREATE TABLE memories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			created_ts REAL NOT NULL,
			text TEXT NOT NULL
		);
		CREATE INDEX idx_mem_user_ts ON memories(user_id, created_ts);
	`)
	if err != nil {
		db.Close()
		t.Fatalf("create table: %v", err)
	}
	return db
}

func TestLedger_AppendAndRetrieve(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ledger := NewLedger(db, nil)
	ctx := context.Background()

	before := time.Now()
	if err := ledger.Append(ctx, 1, "pass rate dipped after the checkout rollout"); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	entries, err := ledger.RecentCandidates(ctx, 1, 10)
	if err != nil {
		t.Fatalf("RecentCandidates() error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Text != "pass rate dipped after the checkout rollout" {
		t.Errorf("unexpected text: %q", entries[0].Text)
	}
	if entries[0].CreatedAt.Before(before.Add(-time.Second)) {
		t.Errorf("timestamp %v predates append at %v", entries[0].CreatedAt, before)
	}
	if entries[0].OwnerID != 1 {
		t.Errorf("expected owner 1, got %d", entries[0].OwnerID)
	}
}

func TestLedger_BlankTextDropped(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ledger := NewLedger(db, nil)
	ctx := context.Background()

	for _, text := range []string{"", "   ", "\n\t"} {
		if err := ledger.Append(ctx, 1, text); err != nil {
			t.Fatalf("Append(%q) error: %v", text, err)
		}
	}

	entries, err := ledger.RecentCandidates(ctx, 1, 10)
	if err != nil {
		t.Fatalf("RecentCandidates() error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries for blank text, got %d", len(entries))
	}
}

func TestLedger_DuplicatesPermitted(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ledger := NewLedger(db, nil)
	ctx := context.Background()

	for range 3 {
		if err := ledger.Append(ctx, 7, "same text"); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	entries, err := ledger.RecentCandidates(ctx, 7, 10)
	if err != nil {
		t.Fatalf("RecentCandidates() error: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("expected 3 duplicate entries, got %d", len(entries))
	}
}

func TestLedger_RecentCandidatesOrderAndLimit(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ledger := NewLedger(db, nil)
	ctx := context.Background()

	// Inject a deterministic clock so insertion order is unambiguous.
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	ledger.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}

	for _, text := range []string{"first", "second", "third", "fourth"} {
		if err := ledger.Append(ctx, 1, text); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}
	// Another user's entries must not leak into the scan.
	if err := ledger.Append(ctx, 2, "other user"); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	entries, err := ledger.RecentCandidates(ctx, 1, 3)
	if err != nil {
		t.Fatalf("RecentCandidates() error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	want := []string{"fourth", "third", "second"}
	for i, w := range want {
		if entries[i].Text != w {
			t.Errorf("entries[%d] = %q, want %q", i, entries[i].Text, w)
		}
	}
}
