// Package sequence_repo provides the PostgreSQL counter store behind document numbering.
package sequence_repo

import (
	"context"
	"fmt"

	"merchledger/internal/core/numerator"
	"merchledger/internal/infrastructure/storage/postgres"
)

// CounterStore implements numerator.CounterStore on the sys_sequences table.
//
// Increments run on the pool, outside the caller's transaction, and commit
// immediately: a number drawn by a document that later aborts stays used.
type CounterStore struct {
	querier postgres.Querier
}

var _ numerator.CounterStore = (*CounterStore)(nil)

// NewCounterStore creates a counter store that writes through txm's pool.
func NewCounterStore(txm *postgres.TxManager) *CounterStore {
	return &CounterStore{querier: txm.Pool()}
}

// newCounterStoreWithQuerier is used by tests.
func newCounterStoreWithQuerier(q postgres.Querier) *CounterStore {
	return &CounterStore{querier: q}
}

// Increment creates the counter at 1 or adds one, returning the new value.
func (s *CounterStore) Increment(ctx context.Context, c numerator.Counter) (int64, error) {
	var seq int64
	err := s.querier.QueryRow(ctx, `
		INSERT INTO sys_sequences (key, prefix, year, current_val)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1
		RETURNING current_val
	`, c.Key, c.Prefix, c.Year).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", c.Key, err)
	}
	return seq, nil
}

// RaiseTo sets the counter to max(current, minimum).
func (s *CounterStore) RaiseTo(ctx context.Context, c numerator.Counter, minimum int64) (int64, error) {
	var seq int64
	err := s.querier.QueryRow(ctx, `
		INSERT INTO sys_sequences (key, prefix, year, current_val)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET current_val = GREATEST(sys_sequences.current_val, EXCLUDED.current_val)
		RETURNING current_val
	`, c.Key, c.Prefix, c.Year, minimum).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("raise %s: %w", c.Key, err)
	}
	return seq, nil
}
