package memory

import (
	"context"
	"sort"
	"sync"

	"solana-deposit-pipeline/internal/domain"
	"solana-deposit-pipeline/internal/storage"
)

// ReceiptStore is an in-memory implementation of storage.ReceiptStore.
type ReceiptStore struct {
	mu   sync.RWMutex
	data map[string]*domain.DepositReceipt // keyed by attempt_id
}

// NewReceiptStore creates a new in-memory receipt store.
func NewReceiptStore() *ReceiptStore {
	return &ReceiptStore{
		data: make(map[string]*domain.DepositReceipt),
	}
}

// Insert adds a new receipt. Returns ErrDuplicateKey if attempt_id exists.
func (s *ReceiptStore) Insert(_ context.Context, r *domain.DepositReceipt) error {
	if r == nil || r.AttemptID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.AttemptID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *r
	s.data[r.AttemptID] = &copy
	return nil
}

// GetByAttemptID retrieves a receipt by its ID. Returns ErrNotFound if not exists.
func (s *ReceiptStore) GetByAttemptID(_ context.Context, attemptID string) (*domain.DepositReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[attemptID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *r
	return &copy, nil
}

// GetByWallet retrieves all receipts for a wallet, ordered by started_at ASC.
func (s *ReceiptStore) GetByWallet(_ context.Context, walletAddress string) ([]*domain.DepositReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DepositReceipt
	for _, r := range s.data {
		if r.WalletAddress == walletAddress {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt != result[j].StartedAt {
			return result[i].StartedAt < result[j].StartedAt
		}
		return result[i].AttemptID < result[j].AttemptID
	})

	return result, nil
}

var _ storage.ReceiptStore = (*ReceiptStore)(nil)
