package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-deposit-pipeline/internal/domain"
	"solana-deposit-pipeline/internal/storage"
)

// ReceiptStore implements storage.ReceiptStore using PostgreSQL.
type ReceiptStore struct {
	pool *Pool
}

// NewReceiptStore creates a new ReceiptStore.
func NewReceiptStore(pool *Pool) *ReceiptStore {
	return &ReceiptStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ReceiptStore = (*ReceiptStore)(nil)

// Insert adds a new receipt. Returns ErrDuplicateKey if attempt_id exists.
func (s *ReceiptStore) Insert(ctx context.Context, r *domain.DepositReceipt) error {
	query := `
		INSERT INTO deposit_receipts (
			attempt_id, wallet_address, content_id, size_bytes, duration_seconds,
			deposit_amount, estimated_cost, signature, finality,
			failed_stage, failure_detail, started_at, finished_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13
		)
	`

	_, err := s.pool.Exec(ctx, query,
		r.AttemptID, r.WalletAddress, r.ContentID, r.SizeBytes, r.DurationSeconds,
		r.DepositAmount, r.EstimatedCost, r.Signature, string(r.Finality),
		r.FailedStage, r.FailureDetail, r.StartedAt, r.FinishedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert deposit receipt: %w", err)
	}
	return nil
}

// GetByAttemptID retrieves a receipt by its ID. Returns ErrNotFound if not exists.
func (s *ReceiptStore) GetByAttemptID(ctx context.Context, attemptID string) (*domain.DepositReceipt, error) {
	query := `
		SELECT
			attempt_id, wallet_address, content_id, size_bytes, duration_seconds,
			deposit_amount, estimated_cost, signature, finality,
			failed_stage, failure_detail, started_at, finished_at
		FROM deposit_receipts
		WHERE attempt_id = $1
	`

	row := s.pool.QueryRow(ctx, query, attemptID)
	r, err := scanReceipt(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get deposit receipt by id: %w", err)
	}
	return r, nil
}

// GetByWallet retrieves all receipts for a wallet, ordered by started_at ASC.
func (s *ReceiptStore) GetByWallet(ctx context.Context, walletAddress string) ([]*domain.DepositReceipt, error) {
	query := `
		SELECT
			attempt_id, wallet_address, content_id, size_bytes, duration_seconds,
			deposit_amount, estimated_cost, signature, finality,
			failed_stage, failure_detail, started_at, finished_at
		FROM deposit_receipts
		WHERE wallet_address = $1
		ORDER BY started_at ASC, attempt_id ASC
	`

	rows, err := s.pool.Query(ctx, query, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("get deposit receipts by wallet: %w", err)
	}
	defer rows.Close()

	return scanReceipts(rows)
}

// scanReceipt scans a single row into a DepositReceipt.
func scanReceipt(row pgx.Row) (*domain.DepositReceipt, error) {
	var r domain.DepositReceipt
	var finality string

	err := row.Scan(
		&r.AttemptID, &r.WalletAddress, &r.ContentID, &r.SizeBytes, &r.DurationSeconds,
		&r.DepositAmount, &r.EstimatedCost, &r.Signature, &finality,
		&r.FailedStage, &r.FailureDetail, &r.StartedAt, &r.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Finality = domain.Finality(finality)
	return &r, nil
}

// scanReceipts scans multiple rows into a slice of DepositReceipt.
func scanReceipts(rows pgx.Rows) ([]*domain.DepositReceipt, error) {
	var receipts []*domain.DepositReceipt

	for rows.Next() {
		var r domain.DepositReceipt
		var finality string

		err := rows.Scan(
			&r.AttemptID, &r.WalletAddress, &r.ContentID, &r.SizeBytes, &r.DurationSeconds,
			&r.DepositAmount, &r.EstimatedCost, &r.Signature, &finality,
			&r.FailedStage, &r.FailureDetail, &r.StartedAt, &r.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan deposit receipt row: %w", err)
		}

		r.Finality = domain.Finality(finality)
		receipts = append(receipts, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deposit receipt rows: %w", err)
	}

	return receipts, nil
}
