package bigquery

import (
	"testing"
	"time"

	"github.com/nlozovan/budget-ledger/internal/domain"
)

func TestRowMapping_CategoryPathAndNulls(t *testing.T) {
	txn := domain.Transaction{
		ID:                   "tx-1",
		ExternalID:           "ext-1",
		UserID:               "user-1",
		AccountID:            "acc-1",
		Amount:               42.5,
		Currency:             "USD",
		Date:                 time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		Status:               domain.StatusPosted,
		Name:                 "STARBUCKS #4521",
		AggregatorCategories: []string{"Food and Drink", "Coffee Shop"},
	}

	row := fromDomain(&txn)
	if !row.AggregatorCategories.Valid || row.AggregatorCategories.StringVal != "Food and Drink/Coffee Shop" {
		t.Errorf("category path = %+v, want joined path", row.AggregatorCategories)
	}
	if row.MerchantName.Valid {
		t.Error("empty merchant should map to NULL")
	}

	back := row.toDomain()
	if len(back.AggregatorCategories) != 2 || back.AggregatorCategories[1] != "Coffee Shop" {
		t.Errorf("round-tripped categories = %v", back.AggregatorCategories)
	}
	if !back.Date.Equal(txn.Date) {
		t.Errorf("round-tripped date = %v, want %v", back.Date, txn.Date)
	}
	if back.Status != domain.StatusPosted {
		t.Errorf("round-tripped status = %q", back.Status)
	}
}
