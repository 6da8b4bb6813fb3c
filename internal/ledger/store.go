// Package ledger defines the persistence contract for a user's transaction
// ledger. The reconciliation subsystem always reads and writes the full
// per-user array; there are no partial writes.
package ledger

import (
	"context"
	"errors"

	"github.com/nlozovan/budget-ledger/internal/domain"
)

// ErrVersionConflict indicates the ledger changed between Load and Save.
// The whole read-modify-write cycle must be retried.
var ErrVersionConflict = errors.New("ledger: version conflict, reload and retry")

// Store loads and saves the complete ledger for one user.
//
// Implementations track the version observed at Load and reject a Save over
// a newer version with ErrVersionConflict, so concurrent read-modify-write
// cycles for the same user cannot silently lose updates.
type Store interface {
	// Load returns every transaction for the user, including removed rows.
	// A user with no ledger yet yields an empty slice, not an error.
	Load(ctx context.Context, userID string) ([]domain.Transaction, error)

	// Save replaces the user's ledger in one write.
	Save(ctx context.Context, userID string, txns []domain.Transaction) error
}
