package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-deposit-pipeline/internal/domain"
	"solana-deposit-pipeline/internal/storage"
	"solana-deposit-pipeline/internal/storage/postgres"
)

func testReceipt(attemptID, wallet string, startedAt int64) *domain.DepositReceipt {
	return &domain.DepositReceipt{
		AttemptID:       attemptID,
		WalletAddress:   wallet,
		ContentID:       "content-001",
		SizeBytes:       1 << 20,
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
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewReceiptStore(pool)
	ctx := context.Background()

	want := testReceipt("a1", "wallet1", 1000)
	require.NoError(t, store.Insert(ctx, want))

	got, err := store.GetByAttemptID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReceiptStore_InsertFailedAttempt(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewReceiptStore(pool)
	ctx := context.Background()

	want := testReceipt("a1", "wallet1", 1000)
	want.Signature = ""
	want.Finality = domain.FinalityFailed
	want.FailedStage = "BROADCASTING"
	want.FailureDetail = "broadcast transaction: SIMULATION_FAILED: insufficient funds"
	require.NoError(t, store.Insert(ctx, want))

	got, err := store.GetByAttemptID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.FinalityFailed, got.Finality)
	assert.Equal(t, "BROADCASTING", got.FailedStage)
	assert.Equal(t, want.FailureDetail, got.FailureDetail)
	assert.Empty(t, got.Signature)
}

func TestReceiptStore_DuplicateKey(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewReceiptStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testReceipt("a1", "wallet1", 1000)))

	err := store.Insert(ctx, testReceipt("a1", "wallet2", 2000))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestReceiptStore_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewReceiptStore(pool)

	_, err := store.GetByAttemptID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReceiptStore_GetByWallet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewReceiptStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testReceipt("a2", "wallet1", 2000)))
	require.NoError(t, store.Insert(ctx, testReceipt("a1", "wallet1", 1000)))
	require.NoError(t, store.Insert(ctx, testReceipt("b1", "wallet2", 500)))

	got, err := store.GetByWallet(ctx, "wallet1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a1", got[0].AttemptID)
	assert.Equal(t, "a2", got[1].AttemptID)

	empty, err := store.GetByWallet(ctx, "wallet3")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
