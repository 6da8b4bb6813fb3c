package bigquery

import (
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/nlozovan/budget-ledger/internal/domain"
)

// transactionRow maps one ledger transaction onto the
// ledger_transactions table schema.
type transactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	ExternalID bigquery.NullString `bigquery:"external_id"` // NULLABLE
	UserID     string              `bigquery:"user_id"`     // REQUIRED
	AccountID  string              `bigquery:"account_id"`  // REQUIRED

	Amount   float64    `bigquery:"amount"`   // REQUIRED FLOAT64
	Currency string     `bigquery:"currency"` // REQUIRED STRING
	Date     civil.Date `bigquery:"date"`     // REQUIRED DATE
	Status   string     `bigquery:"status"`   // REQUIRED STRING

	Name         string              `bigquery:"name"`          // REQUIRED STRING
	MerchantName bigquery.NullString `bigquery:"merchant_name"` // NULLABLE
	OverrideName bigquery.NullString `bigquery:"override_name"` // NULLABLE
	Notes        bigquery.NullString `bigquery:"notes"`         // NULLABLE

	Tags                 []string            `bigquery:"tags"`                  // REPEATED STRING
	AggregatorCategories bigquery.NullString `bigquery:"aggregator_categories"` // NULLABLE, "/"-joined path
	CategoryID           bigquery.NullString `bigquery:"category_id"`           // NULLABLE
	UserCategoryID       bigquery.NullString `bigquery:"user_category_id"`      // NULLABLE

	IsHidden bool `bigquery:"is_hidden"`
	IsSplit  bool `bigquery:"is_split"`

	ParentTransactionID bigquery.NullString `bigquery:"parent_transaction_id"` // NULLABLE
	ChildTransactionIDs []string            `bigquery:"child_transaction_ids"` // REPEATED STRING

	CreatedAt time.Time `bigquery:"created_at"`
	UpdatedAt time.Time `bigquery:"updated_at"`
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func fromDomain(t *domain.Transaction) *transactionRow {
	return &transactionRow{
		TransactionID:        t.ID,
		ExternalID:           nullString(t.ExternalID),
		UserID:               t.UserID,
		AccountID:            t.AccountID,
		Amount:               t.Amount,
		Currency:             t.Currency,
		Date:                 civil.DateOf(t.Date),
		Status:               string(t.Status),
		Name:                 t.Name,
		MerchantName:         nullString(t.MerchantName),
		OverrideName:         nullString(t.OverrideName),
		Notes:                nullString(t.Notes),
		Tags:                 t.Tags,
		AggregatorCategories: nullString(strings.Join(t.AggregatorCategories, "/")),
		CategoryID:           nullString(t.CategoryID),
		UserCategoryID:       nullString(t.UserCategoryID),
		IsHidden:             t.IsHidden,
		IsSplit:              t.IsSplit,
		ParentTransactionID:  nullString(t.ParentTransactionID),
		ChildTransactionIDs:  t.ChildTransactionIDs,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
	}
}

func (r *transactionRow) toDomain() domain.Transaction {
	t := domain.Transaction{
		ID:                  r.TransactionID,
		ExternalID:          r.ExternalID.StringVal,
		UserID:              r.UserID,
		AccountID:           r.AccountID,
		Amount:              r.Amount,
		Currency:            r.Currency,
		Date:                r.Date.In(time.UTC),
		Status:              domain.Status(r.Status),
		Name:                r.Name,
		MerchantName:        r.MerchantName.StringVal,
		OverrideName:        r.OverrideName.StringVal,
		Notes:               r.Notes.StringVal,
		Tags:                r.Tags,
		CategoryID:          r.CategoryID.StringVal,
		UserCategoryID:      r.UserCategoryID.StringVal,
		IsHidden:            r.IsHidden,
		IsSplit:             r.IsSplit,
		ParentTransactionID: r.ParentTransactionID.StringVal,
		ChildTransactionIDs: r.ChildTransactionIDs,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
	if r.AggregatorCategories.Valid && r.AggregatorCategories.StringVal != "" {
		t.AggregatorCategories = strings.Split(r.AggregatorCategories.StringVal, "/")
	}
	return t
}
