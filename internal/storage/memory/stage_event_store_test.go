package memory

import (
	"context"
	"errors"
	"testing"

	"solana-deposit-pipeline/internal/domain"
	"solana-deposit-pipeline/internal/storage"
)

func testEvents(attemptID string) []*domain.StageEvent {
	return []*domain.StageEvent{
		{AttemptID: attemptID, Seq: 0, Stage: "FETCHING", State: "STARTED", At: 1000},
		{AttemptID: attemptID, Seq: 1, Stage: "FETCHING", State: "OK", At: 1100},
		{AttemptID: attemptID, Seq: 2, Stage: "DECODING", State: "STARTED", At: 1101},
	}
}

func TestStageEventStore_InsertBulkAndGet(t *testing.T) {
	store := NewStageEventStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, testEvents("a1")); err != nil {
		t.Fatalf("InsertBulk() error = %v", err)
	}

	got, err := store.GetByAttemptID(ctx, "a1")
	if err != nil {
		t.Fatalf("GetByAttemptID() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	for i, e := range got {
		if e.Seq != int32(i) {
			t.Errorf("events[%d].Seq = %d, want %d", i, e.Seq, i)
		}
	}
	if got[2].Stage != "DECODING" {
		t.Errorf("events[2].Stage = %s, want DECODING", got[2].Stage)
	}
}

func TestStageEventStore_EmptyBatch(t *testing.T) {
	store := NewStageEventStore()

	if err := store.InsertBulk(context.Background(), nil); err != nil {
		t.Errorf("InsertBulk(nil) error = %v, want nil", err)
	}
}

func TestStageEventStore_DuplicateAcrossBatches(t *testing.T) {
	store := NewStageEventStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, testEvents("a1")); err != nil {
		t.Fatalf("InsertBulk() error = %v", err)
	}

	err := store.InsertBulk(ctx, testEvents("a1"))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("error = %v, want ErrDuplicateKey", err)
	}
}

func TestStageEventStore_DuplicateWithinBatch(t *testing.T) {
	store := NewStageEventStore()

	events := []*domain.StageEvent{
		{AttemptID: "a1", Seq: 0, Stage: "FETCHING", State: "STARTED"},
		{AttemptID: "a1", Seq: 0, Stage: "FETCHING", State: "OK"},
	}
	err := store.InsertBulk(context.Background(), events)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("error = %v, want ErrDuplicateKey", err)
	}

	// A failed batch must not be partially applied.
	got, _ := store.GetByAttemptID(context.Background(), "a1")
	if len(got) != 0 {
		t.Errorf("got %d events after failed batch, want 0", len(got))
	}
}

func TestStageEventStore_InvalidInput(t *testing.T) {
	store := NewStageEventStore()

	events := []*domain.StageEvent{
		{AttemptID: "", Seq: 0, Stage: "FETCHING", State: "STARTED"},
	}
	if err := store.InsertBulk(context.Background(), events); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestStageEventStore_IsolatesAttempts(t *testing.T) {
	store := NewStageEventStore()
	ctx := context.Background()

	store.InsertBulk(ctx, testEvents("a1"))
	store.InsertBulk(ctx, testEvents("a2"))

	got, err := store.GetByAttemptID(ctx, "a2")
	if err != nil {
		t.Fatalf("GetByAttemptID() error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("got %d events, want 3", len(got))
	}
	for _, e := range got {
		if e.AttemptID != "a2" {
			t.Errorf("event for attempt %s leaked into a2's history", e.AttemptID)
		}
	}
}
