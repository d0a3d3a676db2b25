package memory

import (
	"context"
	"sort"
	"sync"

	"solana-deposit-pipeline/internal/domain"
	"solana-deposit-pipeline/internal/storage"
)

// StageEventStore is an in-memory implementation of storage.StageEventStore.
type StageEventStore struct {
	mu   sync.RWMutex
	data map[eventKey]*domain.StageEvent
}

type eventKey struct {
	attemptID string
	seq       int32
}

// NewStageEventStore creates a new in-memory stage event store.
func NewStageEventStore() *StageEventStore {
	return &StageEventStore{
		data: make(map[eventKey]*domain.StageEvent),
	}
}

// InsertBulk adds the events of one run. Fails entire batch on
// duplicate (attempt_id, seq).
func (s *StageEventStore) InsertBulk(_ context.Context, events []*domain.StageEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[eventKey]struct{}, len(events))

	for _, e := range events {
		if e == nil || e.AttemptID == "" {
			return storage.ErrInvalidInput
		}

		k := eventKey{e.AttemptID, e.Seq}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	for _, e := range events {
		copy := *e
		s.data[eventKey{e.AttemptID, e.Seq}] = &copy
	}

	return nil
}

// GetByAttemptID retrieves all events for an attempt, ordered by seq ASC.
func (s *StageEventStore) GetByAttemptID(_ context.Context, attemptID string) ([]*domain.StageEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.StageEvent
	for _, e := range s.data {
		if e.AttemptID == attemptID {
			copy := *e
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})

	return result, nil
}

var _ storage.StageEventStore = (*StageEventStore)(nil)
