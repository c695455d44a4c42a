package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/assistdeck/gateway/internal/logging"
	"github.com/assistdeck/gateway/internal/worker"
)

func TestMemoryStore_RetainsRecentEntries(t *testing.T) {
	store := NewMemoryStore(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		entry := Entry{ID: NewEntryID(), Source: "s", Outcome: OutcomeCompleted, StartedAt: time.Now()}
		if err := store.WriteActivity(ctx, entry); err != nil {
			t.Fatalf("WriteActivity() error = %v", err)
		}
	}

	entries := store.Entries()
	if len(entries) != 3 {
		t.Errorf("retained = %d, want 3", len(entries))
	}
}

func TestLogger_WritesThroughPool(t *testing.T) {
	store := NewMemoryStore(100)
	pool := worker.NewPool(1, 16, logging.NewNop())
	logger := NewLogger(store, pool, logging.NewNop())

	entry := Entry{ID: NewEntryID(), Source: "dashboard", Target: "tasks", Outcome: OutcomeCompleted}
	record := &CallRecord{EntryID: entry.ID, Target: "tasks", Success: true}

	if !logger.Record(entry, record) {
		t.Fatal("Record() = false, want enqueued")
	}
	pool.Close() // drain

	if got := len(store.Entries()); got != 1 {
		t.Fatalf("activity entries = %d, want 1", got)
	}
	if got := len(store.CallRecords()); got != 1 {
		t.Fatalf("call records = %d, want 1", got)
	}
	if store.Entries()[0].ID != entry.ID {
		t.Errorf("entry ID = %q, want %q", store.Entries()[0].ID, entry.ID)
	}
}

func TestLogger_NilCallRecord(t *testing.T) {
	store := NewMemoryStore(100)
	pool := worker.NewPool(1, 16, logging.NewNop())
	logger := NewLogger(store, pool, logging.NewNop())

	logger.Record(Entry{ID: NewEntryID(), Outcome: OutcomeUnauthorized}, nil)
	pool.Close()

	if got := len(store.CallRecords()); got != 0 {
		t.Errorf("call records = %d, want 0", got)
	}
	if got := len(store.Entries()); got != 1 {
		t.Errorf("activity entries = %d, want 1", got)
	}
}

type brokenStore struct{}

func (brokenStore) WriteActivity(context.Context, Entry) error {
	return errors.New("unreachable")
}

func (brokenStore) WriteCallLog(context.Context, CallRecord) error {
	return errors.New("unreachable")
}

func TestLogger_StoreFailureDoesNotPropagate(t *testing.T) {
	pool := worker.NewPool(1, 16, logging.NewNop())
	logger := NewLogger(brokenStore{}, pool, logging.NewNop())

	// Record must neither error nor panic when every write fails.
	if !logger.Record(Entry{ID: NewEntryID()}, &CallRecord{}) {
		t.Error("Record() = false, want enqueued")
	}
	pool.Close()
}
