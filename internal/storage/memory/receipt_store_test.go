package memory

import (
	"context"
	"errors"
	"testing"

	"solana-deposit-pipeline/internal/domain"
	"solana-deposit-pipeline/internal/storage"
)

func testReceipt(attemptID, wallet string, startedAt int64) *domain.DepositReceipt {
	return &domain.DepositReceipt{
		AttemptID:       attemptID,
		WalletAddress:   wallet,
		ContentID:       "content-001",
		SizeBytes:       1024,
		DurationSeconds: 86400,
		DepositAmount:   0.5,
		EstimatedCost:   0.0016,
		Signature:       "sig-" + attemptID,
		Finality:        domain.FinalityConfirmed,
		StartedAt:       startedAt,
		FinishedAt:      startedAt + 5000,
	}
}

func TestReceiptStore_InsertAndGet(t *testing.T) {
	store := NewReceiptStore()
	ctx := context.Background()

	r := testReceipt("a1", "wallet1", 1000)
	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := store.GetByAttemptID(ctx, "a1")
	if err != nil {
		t.Fatalf("GetByAttemptID() error = %v", err)
	}
	if got.Signature != r.Signature || got.Finality != r.Finality {
		t.Errorf("got %+v, want %+v", got, r)
	}

	// The store must hold a copy, not the caller's pointer.
	r.Signature = "mutated"
	got, _ = store.GetByAttemptID(ctx, "a1")
	if got.Signature == "mutated" {
		t.Error("store shares memory with the caller")
	}
}

func TestReceiptStore_DuplicateKey(t *testing.T) {
	store := NewReceiptStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testReceipt("a1", "wallet1", 1000)); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	err := store.Insert(ctx, testReceipt("a1", "wallet2", 2000))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("error = %v, want ErrDuplicateKey", err)
	}
}

func TestReceiptStore_InvalidInput(t *testing.T) {
	store := NewReceiptStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Insert(nil) error = %v, want ErrInvalidInput", err)
	}
	if err := store.Insert(ctx, &domain.DepositReceipt{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Insert(empty id) error = %v, want ErrInvalidInput", err)
	}
}

func TestReceiptStore_NotFound(t *testing.T) {
	store := NewReceiptStore()

	_, err := store.GetByAttemptID(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestReceiptStore_GetByWallet(t *testing.T) {
	store := NewReceiptStore()
	ctx := context.Background()

	store.Insert(ctx, testReceipt("a2", "wallet1", 2000))
	store.Insert(ctx, testReceipt("a1", "wallet1", 1000))
	store.Insert(ctx, testReceipt("b1", "wallet2", 500))

	got, err := store.GetByWallet(ctx, "wallet1")
	if err != nil {
		t.Fatalf("GetByWallet() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d receipts, want 2", len(got))
	}
	if got[0].AttemptID != "a1" || got[1].AttemptID != "a2" {
		t.Errorf("receipts out of started_at order: %s, %s", got[0].AttemptID, got[1].AttemptID)
	}

	empty, err := store.GetByWallet(ctx, "wallet3")
	if err != nil {
		t.Fatalf("GetByWallet() error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("got %d receipts for unknown wallet, want 0", len(empty))
	}
}
