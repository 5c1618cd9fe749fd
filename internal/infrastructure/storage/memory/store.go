// Package memory is an in-process implementation of the ledger storage contracts.
// It backs tests and the STORAGE_DRIVER=memory demo mode. Every transaction
// snapshots the whole store, so it is sized for demo data, not production volume.
package memory

import (
	"context"
	"sync"

	"merchledger/internal/core/id"
	"merchledger/internal/core/tx"
	"merchledger/internal/domain/documents"
	"merchledger/internal/domain/stock"
)

// Store holds all ledger state in maps.
//
// Transactions are serialized by txMu and undone from a snapshot on error,
// which gives serializable isolation for writers. Sequence counters live
// outside the snapshot, so an aborted transaction never gets its number back.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	records map[id.ID]*stock.Record
	docs    map[id.ID]*documents.Document
	numbers map[string]id.ID

	counterMu sync.Mutex
	counters  map[string]int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		records:  make(map[id.ID]*stock.Record),
		docs:     make(map[id.ID]*documents.Document),
		numbers:  make(map[string]id.ID),
		counters: make(map[string]int64),
	}
}

// TxManager returns the transaction manager of the store.
func (s *Store) TxManager() *TxManager { return &TxManager{store: s} }

// Stock returns a stock.Repository over the store.
func (s *Store) Stock() *StockRepo { return &StockRepo{store: s} }

// Documents returns a documents.Repository over the store.
func (s *Store) Documents() *DocumentRepo { return &DocumentRepo{store: s} }

// Counters returns a numerator.CounterStore over the store.
func (s *Store) Counters() *Counters { return &Counters{store: s} }

type snapshot struct {
	records map[id.ID]*stock.Record
	docs    map[id.ID]*documents.Document
	numbers map[string]id.ID
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		records: make(map[id.ID]*stock.Record, len(s.records)),
		docs:    make(map[id.ID]*documents.Document, len(s.docs)),
		numbers: make(map[string]id.ID, len(s.numbers)),
	}
	for k, v := range s.records {
		snap.records[k] = v.Clone()
	}
	for k, v := range s.docs {
		snap.docs[k] = cloneDocument(v)
	}
	for k, v := range s.numbers {
		snap.numbers[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = snap.records
	s.docs = snap.docs
	s.numbers = snap.numbers
}

// write runs fn with exclusive access. Outside a transaction it also waits
// for running transactions so single writes stay atomic with respect to them.
func (s *Store) write(ctx context.Context, fn func() error) error {
	if !inTx(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// read runs fn with shared access. Outside a transaction it waits for running
// transactions, so callers never observe writes that may still roll back.
func (s *Store) read(ctx context.Context, fn func() error) error {
	if !inTx(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn()
}

type txKey struct{}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(bool)
	return ok
}

// TxManager implements tx.ReadOnlyManager for the memory store.
type TxManager struct {
	store *Store
}

var _ tx.ReadOnlyManager = (*TxManager)(nil)

// RunInTransaction implements tx.Manager. Nested calls join the outer transaction.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	m.store.txMu.Lock()
	defer m.store.txMu.Unlock()

	snap := m.store.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

// ReadOnly implements tx.ReadOnlyManager.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.RunInTransaction(ctx, fn)
}

func cloneDocument(d *documents.Document) *documents.Document {
	c := *d
	c.Items = make([]documents.LineItem, len(d.Items))
	for i, line := range d.Items {
		if line.CountedQuantity != nil {
			q := *line.CountedQuantity
			line.CountedQuantity = &q
		}
		if line.BookQuantity != nil {
			q := *line.BookQuantity
			line.BookQuantity = &q
		}
		c.Items[i] = line
	}
	return &c
}
