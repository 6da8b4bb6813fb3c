package domain

import (
	"github.com/shopspring/decimal"
)

// ImportCandidate is one row parsed from a user-supplied transaction export.
// It is ephemeral: candidates are never persisted and never carry an
// external-source id usable against the ledger.
type ImportCandidate struct {
	// Date is the raw date string from the source, normalized only at
	// comparison time. Sources disagree on format (M/D/YYYY, YYYY-MM-DD, ...).
	Date string `json:"date"`

	Description string `json:"description"`

	// Amount may be signed or unsigned depending on source convention, so
	// comparisons against the ledger use absolute values.
	Amount decimal.Decimal `json:"amount"`

	// Optional hints from the source file; not authoritative.
	CategoryHint string `json:"category_hint,omitempty"`
	MerchantHint string `json:"merchant_hint,omitempty"`
}
