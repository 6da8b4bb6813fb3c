// Package bigquery provides a ledger.Store backed by a BigQuery table. It
// exists for deployments that want the ledger queryable from the reporting
// dataset; the GCS store remains the default for interactive use.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/nlozovan/budget-ledger/internal/domain"
)

// Store is a ledger.Store writing to <project>.<dataset>.ledger_transactions.
// Save deletes the user's rows and re-inserts the full ledger, matching the
// full-read/full-write contract of the store interface.
type Store struct {
	client  *bigquery.Client
	project string
	dataset string
	table   string
}

// NewStore creates a BigQuery-backed ledger store.
func NewStore(ctx context.Context, project, dataset string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("bigquery.NewStore: client: %w", err)
	}

	return &Store{
		client:  client,
		project: project,
		dataset: dataset,
		table:   "ledger_transactions",
	}, nil
}

// Close closes the underlying BigQuery client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Load implements ledger.Store.
func (s *Store) Load(ctx context.Context, userID string) ([]domain.Transaction, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT *
		FROM %s.%s
		WHERE user_id = @user_id
		ORDER BY date, created_at
	`, "`"+s.project+"."+s.dataset+"`", s.table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("bigquery.Load: query read: %w", err)
	}

	var txns []domain.Transaction
	for {
		var row transactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bigquery.Load: iterating rows: %w", err)
		}
		txns = append(txns, row.toDomain())
	}

	if txns == nil {
		txns = []domain.Transaction{}
	}
	return txns, nil
}

// Save implements ledger.Store.
func (s *Store) Save(ctx context.Context, userID string, txns []domain.Transaction) error {
	if err := s.deleteUserRows(ctx, userID); err != nil {
		return err
	}

	if len(txns) == 0 {
		return nil
	}

	rows := make([]*transactionRow, 0, len(txns))
	for i := range txns {
		rows = append(rows, fromDomain(&txns[i]))
	}

	inserter := s.client.DatasetInProject(s.project, s.dataset).Table(s.table).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("bigquery.Save: inserting rows: %w", err)
	}

	return nil
}

func (s *Store) deleteUserRows(ctx context.Context, userID string) error {
	q := s.client.Query(fmt.Sprintf(`
		DELETE FROM %s.%s
		WHERE user_id = @user_id
	`, "`"+s.project+"."+s.dataset+"`", s.table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("bigquery.Save: run delete: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("bigquery.Save: wait for delete: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("bigquery.Save: delete job: %w", err)
	}

	return nil
}
