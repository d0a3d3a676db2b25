package storage

import (
	"context"

	"solana-deposit-pipeline/internal/domain"
)

// ReceiptStore provides access to deposit_receipts storage. Receipts
// are written once, at the end of a run, with the terminal outcome.
type ReceiptStore interface {
	// Insert adds a new receipt. Returns ErrDuplicateKey if attempt_id exists.
	Insert(ctx context.Context, r *domain.DepositReceipt) error

	// GetByAttemptID retrieves a receipt by its ID. Returns ErrNotFound if not exists.
	GetByAttemptID(ctx context.Context, attemptID string) (*domain.DepositReceipt, error)

	// GetByWallet retrieves all receipts for a wallet, ordered by started_at ASC.
	GetByWallet(ctx context.Context, walletAddress string) ([]*domain.DepositReceipt, error)
}

// StageEventStore provides access to stage_events storage. Events are
// an append-only journal of stage transitions used for analytics.
type StageEventStore interface {
	// InsertBulk adds the events of one run. Fails entire batch on
	// duplicate (attempt_id, seq).
	InsertBulk(ctx context.Context, events []*domain.StageEvent) error

	// GetByAttemptID retrieves all events for an attempt, ordered by seq ASC.
	GetByAttemptID(ctx context.Context, attemptID string) ([]*domain.StageEvent, error)
}
