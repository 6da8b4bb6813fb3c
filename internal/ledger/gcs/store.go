// Package gcs stores each user's ledger as a single JSON object in a Cloud
// Storage bucket. Writes use generation preconditions so a stale
// read-modify-write cycle fails instead of silently clobbering newer data.
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/nlozovan/budget-ledger/internal/domain"
	"github.com/nlozovan/budget-ledger/internal/ledger"
)

// Store is a ledger.Store backed by a GCS bucket. One JSON object per user
// under ledgers/<userID>.json.
//
// A Store tracks the object generation observed at Load per user, so it is
// meant to be used by one logical writer at a time per user; the reconciler
// serializes per-user on top of this.
type Store struct {
	client *storage.Client
	bucket string

	mu          sync.Mutex
	generations map[string]int64 // object generation seen at last Load
}

// NewStore creates a GCS-backed ledger store. It assumes Application Default
// Credentials unless explicit options are passed.
func NewStore(ctx context.Context, bucket string, opts ...option.ClientOption) (*Store, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs.NewStore: storage client: %w", err)
	}

	return &Store{
		client:      client,
		bucket:      bucket,
		generations: make(map[string]int64),
	}, nil
}

// Close releases the underlying storage client.
func (s *Store) Close() error {
	return s.client.Close()
}

func objectName(userID string) string {
	return fmt.Sprintf("ledgers/%s.json", userID)
}

// Load implements ledger.Store.
func (s *Store) Load(ctx context.Context, userID string) ([]domain.Transaction, error) {
	obj := s.client.Bucket(s.bucket).Object(objectName(userID))

	rc, err := obj.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		s.setGeneration(userID, 0)
		return []domain.Transaction{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("gcs.Load: reading %s: %w", objectName(userID), err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("gcs.Load: reading bytes: %w", err)
	}

	var txns []domain.Transaction
	if err := json.Unmarshal(data, &txns); err != nil {
		return nil, fmt.Errorf("gcs.Load: decoding ledger: %w", err)
	}

	s.setGeneration(userID, rc.Attrs.Generation)
	return txns, nil
}

// Save implements ledger.Store. The write carries a generation precondition
// matching the generation seen at Load; a mismatch surfaces as
// ledger.ErrVersionConflict.
func (s *Store) Save(ctx context.Context, userID string, txns []domain.Transaction) error {
	gen := s.generation(userID)

	obj := s.client.Bucket(s.bucket).Object(objectName(userID))
	if gen == 0 {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	} else {
		obj = obj.If(storage.Conditions{GenerationMatch: gen})
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"

	data, err := json.Marshal(txns)
	if err != nil {
		return fmt.Errorf("gcs.Save: encoding ledger: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("gcs.Save: writing object: %w", err)
	}
	if err := w.Close(); err != nil {
		if isPreconditionFailed(err) {
			return ledger.ErrVersionConflict
		}
		return fmt.Errorf("gcs.Save: finalizing write: %w", err)
	}

	s.setGeneration(userID, w.Attrs().Generation)
	return nil
}

func isPreconditionFailed(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed
}

func (s *Store) generation(userID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[userID]
}

func (s *Store) setGeneration(userID string, gen int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[userID] = gen
}
