// Package accounts resolves which linked accounts belong to a user. The
// registry is a JSON file mapping user ids to account lists; institution
// credentials stay opaque here, only the reference is carried.
package accounts

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/nlozovan/budget-ledger/internal/domain"
)

// Source provides the linked accounts for a user.
type Source interface {
	AccountsForUser(ctx context.Context, userID string) ([]domain.Account, error)
}

// Registry is a file-backed account source. The file holds a JSON object
// keyed by user id, each value an array of accounts.
type Registry struct {
	byUser map[string][]domain.Account
}

// NewRegistryFromFile loads the account registry from a JSON file.
func NewRegistryFromFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("NewRegistryFromFile: %w", err)
	}
	return NewRegistry(data)
}

// NewRegistry parses a JSON registry document.
func NewRegistry(data []byte) (*Registry, error) {
	byUser := make(map[string][]domain.Account)
	if err := json.Unmarshal(data, &byUser); err != nil {
		return nil, fmt.Errorf("NewRegistry: parsing registry: %w", err)
	}
	return &Registry{byUser: byUser}, nil
}

// AccountsForUser implements the Source interface.
func (r *Registry) AccountsForUser(ctx context.Context, userID string) ([]domain.Account, error) {
	accts, ok := r.byUser[userID]
	if !ok || len(accts) == 0 {
		return nil, fmt.Errorf("AccountsForUser: no linked accounts for user %s", userID)
	}

	out := make([]domain.Account, len(accts))
	copy(out, accts)
	return out, nil
}

// Ensure Registry implements the Source interface.
var _ Source = (*Registry)(nil)
