package aggregator

import (
	"time"
)

// TransactionRecord is one transaction as reported by the aggregator for a
// fetch window. Records are validated at this boundary; internal logic never
// re-checks shape.
type TransactionRecord struct {
	// ExternalID is the aggregator's identifier for the transaction and the
	// primary join key for sync reconciliation.
	ExternalID string `json:"transaction_id"`

	// AccountExternalID is the aggregator's id for the owning account.
	AccountExternalID string `json:"account_id"`

	// Amount is signed: positive = outflow/debit, negative = inflow/credit.
	Amount   float64   `json:"amount"`
	Date     time.Time `json:"date"`
	Name     string    `json:"name"`
	Merchant string    `json:"merchant_name,omitempty"`

	// Categories is the aggregator's suggested category path, coarse to fine.
	Categories []string `json:"categories,omitempty"`

	Pending  bool   `json:"pending"`
	Currency string `json:"iso_currency_code"`
	Location string `json:"location,omitempty"`
}

// FetchResult is the complete record set for one fetch window.
type FetchResult struct {
	Transactions []TransactionRecord

	// TotalCount is the aggregator's authoritative count for the window. It
	// should equal len(Transactions) once pagination is exhausted.
	TotalCount int
}
