package clickhouse

import (
	"context"
	"fmt"

	"solana-deposit-pipeline/internal/domain"
	"solana-deposit-pipeline/internal/storage"
)

// StageEventStore implements storage.StageEventStore using ClickHouse.
type StageEventStore struct {
	conn *Conn
}

// NewStageEventStore creates a new StageEventStore.
func NewStageEventStore(conn *Conn) *StageEventStore {
	return &StageEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.StageEventStore = (*StageEventStore)(nil)

// InsertBulk adds the events of one run. Fails entire batch on
// duplicate (attempt_id, seq). ClickHouse MergeTree does not enforce
// uniqueness at insert time, so duplicates are checked explicitly.
func (s *StageEventStore) InsertBulk(ctx context.Context, events []*domain.StageEvent) error {
	if len(events) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		attemptID string
		seq       int32
	}
	seen := make(map[key]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.AttemptID == "" {
			return storage.ErrInvalidInput
		}
		k := key{e.AttemptID, e.Seq}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows. One run inserts
	// one attempt_id, so a single count query covers the batch.
	exists, err := s.exists(ctx, events[0].AttemptID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO stage_events (
			attempt_id, seq, stage, state, detail, at_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		err = batch.Append(
			e.AttemptID, uint32(e.Seq), e.Stage, e.State, e.Detail, uint64(e.At),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByAttemptID retrieves all events for an attempt, ordered by seq ASC.
func (s *StageEventStore) GetByAttemptID(ctx context.Context, attemptID string) ([]*domain.StageEvent, error) {
	query := `
		SELECT attempt_id, seq, stage, state, detail, at_ms
		FROM stage_events
		WHERE attempt_id = ?
		ORDER BY seq ASC
	`

	rows, err := s.conn.Query(ctx, query, attemptID)
	if err != nil {
		return nil, fmt.Errorf("query by attempt id: %w", err)
	}
	defer rows.Close()

	return scanStageEvents(rows)
}

// exists checks if any event for the attempt exists.
func (s *StageEventStore) exists(ctx context.Context, attemptID string) (bool, error) {
	query := `
		SELECT count(*) FROM stage_events
		WHERE attempt_id = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, attemptID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// chRows is the row iterator subset shared by scan helpers.
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanStageEvents scans multiple rows.
func scanStageEvents(rows chRows) ([]*domain.StageEvent, error) {
	var events []*domain.StageEvent

	for rows.Next() {
		var e domain.StageEvent
		var seq uint32
		var atMs uint64

		err := rows.Scan(
			&e.AttemptID, &seq, &e.Stage, &e.State, &e.Detail, &atMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan stage event row: %w", err)
		}

		e.Seq = int32(seq)
		e.At = int64(atMs)
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stage event rows: %w", err)
	}

	return events, nil
}
