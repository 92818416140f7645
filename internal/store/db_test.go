package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/setevik/orderwatch/internal/trigger"
)

const (
	orderA = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	orderB = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "resets.db"))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func makeTrigger(orderID string, ts time.Time, outcome trigger.Outcome) *trigger.Trigger {
	tr := trigger.New(orderID, ts, "ERROR Proving failed after retries "+orderID)
	tr.Outcome = outcome
	tr.DiagFile = "auto-reset-logs/" + orderID + "_20260825T120000Z.log"
	return tr
}

func TestInsertAndQuery(t *testing.T) {
	db := openTestDB(t)

	ts := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	tr := makeTrigger(orderA, ts, trigger.OutcomeResetOK)
	if err := db.Insert(tr); err != nil {
		t.Fatalf("Insert error: %v", err)
	}

	got, err := db.Query(QueryFilter{})
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d triggers, want 1", len(got))
	}

	g := got[0]
	if g.ID != tr.ID {
		t.Errorf("ID = %q, want %q", g.ID, tr.ID)
	}
	if g.OrderID != orderA {
		t.Errorf("OrderID = %q, want %q", g.OrderID, orderA)
	}
	if !g.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", g.Timestamp, ts)
	}
	if g.Outcome != trigger.OutcomeResetOK {
		t.Errorf("Outcome = %q", g.Outcome)
	}
	if g.Line != tr.Line {
		t.Errorf("Line = %q", g.Line)
	}
	if g.DiagFile != tr.DiagFile {
		t.Errorf("DiagFile = %q", g.DiagFile)
	}
	if g.Notified {
		t.Error("Notified should default to false")
	}
}

func TestQueryFilters(t *testing.T) {
	db := openTestDB(t)

	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	if err := db.Insert(makeTrigger(orderA, base, trigger.OutcomeResetOK)); err != nil {
		t.Fatal(err)
	}
	if err := db.Insert(makeTrigger(orderB, base.Add(time.Hour), trigger.OutcomeResetFailed)); err != nil {
		t.Fatal(err)
	}
	if err := db.Insert(makeTrigger(orderA, base.Add(2*time.Hour), trigger.OutcomeResetOK)); err != nil {
		t.Fatal(err)
	}

	byOrder, err := db.Query(QueryFilter{OrderID: orderA})
	if err != nil {
		t.Fatal(err)
	}
	if len(byOrder) != 2 {
		t.Errorf("order filter: got %d, want 2", len(byOrder))
	}

	byOutcome, err := db.Query(QueryFilter{Outcome: string(trigger.OutcomeResetFailed)})
	if err != nil {
		t.Fatal(err)
	}
	if len(byOutcome) != 1 || byOutcome[0].OrderID != orderB {
		t.Errorf("outcome filter: got %v", byOutcome)
	}

	since, err := db.Query(QueryFilter{Since: base.Add(30 * time.Minute)})
	if err != nil {
		t.Fatal(err)
	}
	if len(since) != 2 {
		t.Errorf("since filter: got %d, want 2", len(since))
	}

	limited, err := db.Query(QueryFilter{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Fatalf("limit filter: got %d, want 1", len(limited))
	}
	// Newest first.
	if !limited[0].Timestamp.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("expected newest trigger first, got %v", limited[0].Timestamp)
	}
}

func TestMarkNotified(t *testing.T) {
	db := openTestDB(t)

	tr := makeTrigger(orderA, time.Now(), trigger.OutcomeResetOK)
	if err := db.Insert(tr); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkNotified(tr.ID); err != nil {
		t.Fatalf("MarkNotified error: %v", err)
	}

	got, err := db.Query(QueryFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !got[0].Notified {
		t.Error("trigger should be marked notified")
	}
}

func TestPurge(t *testing.T) {
	db := openTestDB(t)

	old := makeTrigger(orderA, time.Now().Add(-48*time.Hour), trigger.OutcomeResetOK)
	recent := makeTrigger(orderB, time.Now(), trigger.OutcomeResetOK)
	if err := db.Insert(old); err != nil {
		t.Fatal(err)
	}
	if err := db.Insert(recent); err != nil {
		t.Fatal(err)
	}

	purged, err := db.Purge(24 * time.Hour)
	if err != nil {
		t.Fatalf("Purge error: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}

	count, err := db.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count after purge = %d, want 1", count)
	}
}

func TestCountEmpty(t *testing.T) {
	db := openTestDB(t)

	count, err := db.Count()
	if err != nil {
		t.Fatalf("Count error: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}
