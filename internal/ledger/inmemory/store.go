// Package inmemory provides an in-memory ledger store. Data is lost on
// restart; it backs unit tests and local runs.
package inmemory

import (
	"context"
	"sync"

	"github.com/nlozovan/budget-ledger/internal/domain"
	"github.com/nlozovan/budget-ledger/internal/ledger"
)

// Store is an in-memory implementation of ledger.Store. It is safe for
// concurrent use and enforces the same optimistic version check as the
// durable stores.
type Store struct {
	mu       sync.RWMutex
	ledgers  map[string][]domain.Transaction
	versions map[string]int64 // current version per user
	loaded   map[string]int64 // version observed at last Load per user
}

// NewStore creates an empty in-memory ledger store.
func NewStore() *Store {
	return &Store{
		ledgers:  make(map[string][]domain.Transaction),
		versions: make(map[string]int64),
		loaded:   make(map[string]int64),
	}
}

// Load implements ledger.Store. It returns a copy so callers cannot mutate
// the stored ledger in place.
func (s *Store) Load(ctx context.Context, userID string) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loaded[userID] = s.versions[userID]

	txns := make([]domain.Transaction, len(s.ledgers[userID]))
	copy(txns, s.ledgers[userID])
	return txns, nil
}

// Save implements ledger.Store. It fails with ledger.ErrVersionConflict when
// the ledger was written by someone else since the caller's Load.
func (s *Store) Save(ctx context.Context, userID string, txns []domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded[userID] != s.versions[userID] {
		return ledger.ErrVersionConflict
	}

	stored := make([]domain.Transaction, len(txns))
	copy(stored, txns)
	s.ledgers[userID] = stored
	s.versions[userID]++
	s.loaded[userID] = s.versions[userID]
	return nil
}

// Seed replaces a user's ledger without a version check. Test helper.
func (s *Store) Seed(userID string, txns []domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]domain.Transaction, len(txns))
	copy(stored, txns)
	s.ledgers[userID] = stored
	s.versions[userID]++
}
