package domain

import (
	"time"
)

// Status is the lifecycle status of a ledger transaction.
type Status string

const (
	// StatusPosted indicates the transaction has settled at the institution.
	StatusPosted Status = "posted"
	// StatusPending indicates the institution still reports the transaction as pending.
	StatusPending Status = "pending"
	// StatusRemoved indicates the aggregator no longer reports the transaction.
	// Removed rows stay in the ledger for audit history; they are never hard-deleted.
	StatusRemoved Status = "removed"
)

// Transaction is the canonical stored ledger record.
// Amounts are signed: positive = outflow/debit, negative = inflow/credit.
type Transaction struct {
	// ID is the internally generated identifier, stable for the record's lifetime.
	ID string `json:"id"`

	// ExternalID is the aggregator's identifier for this transaction. It is
	// empty for rows created from an import or a split.
	ExternalID string `json:"external_id,omitempty"`

	// UserID scopes the row to exactly one user account.
	UserID string `json:"user_id"`

	// AccountID is the internal id of the bank account the row belongs to.
	AccountID string `json:"account_id"`

	Amount   float64   `json:"amount"`
	Currency string    `json:"currency"`
	Date     time.Time `json:"date"` // calendar day, no time component
	Status   Status    `json:"status"`

	// Name is the raw source name/description as reported by the aggregator
	// or the import source.
	Name         string `json:"name"`
	MerchantName string `json:"merchant_name,omitempty"`

	// OverrideName is a user-entered description that replaces Name for
	// display. Syncs never touch it.
	OverrideName string   `json:"override_name,omitempty"`
	Notes        string   `json:"notes,omitempty"`
	Tags         []string `json:"tags,omitempty"`

	// AggregatorCategories is the aggregator-suggested category path,
	// coarse to fine.
	AggregatorCategories []string `json:"aggregator_categories,omitempty"`

	// CategoryID is the internally resolved category.
	CategoryID string `json:"category_id,omitempty"`

	// UserCategoryID is the user-chosen category. Once set it takes precedence
	// over CategoryID and must survive aggregator recategorization.
	UserCategoryID string `json:"user_category_id,omitempty"`

	// IsHidden excludes the row from budget totals.
	IsHidden bool `json:"is_hidden"`

	// Split bookkeeping. A split parent keeps the original external amount;
	// its children carry the divided amounts and reference the parent.
	IsSplit             bool     `json:"is_split"`
	ParentTransactionID string   `json:"parent_transaction_id,omitempty"`
	ChildTransactionIDs []string `json:"child_transaction_ids,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectiveName returns the user override when present, otherwise the raw name.
func (t *Transaction) EffectiveName() string {
	if t.OverrideName != "" {
		return t.OverrideName
	}
	return t.Name
}

// EffectiveCategoryID returns the user-chosen category when present,
// otherwise the resolved one.
func (t *Transaction) EffectiveCategoryID() string {
	if t.UserCategoryID != "" {
		return t.UserCategoryID
	}
	return t.CategoryID
}

// Account is a linked bank account known to the ledger.
type Account struct {
	// ID is the internal account id used on Transaction.AccountID.
	ID string `json:"id"`

	// ExternalID is the aggregator's id for the account; fetched transaction
	// records reference it.
	ExternalID string `json:"external_id"`

	// DisplayName is shown to the user and used in sync warnings. Never expose
	// the credential reference in user-facing output.
	DisplayName string `json:"display_name"`

	// CredentialRef is the opaque encrypted credential token for the
	// institution. Accounts at one institution typically share one token.
	CredentialRef string `json:"credential_ref"`
}

// SyncOutcome summarizes one reconciliation pass.
type SyncOutcome struct {
	Added    int `json:"added"`
	Modified int `json:"modified"`
	Removed  int `json:"removed"`

	// FailedAccounts lists display names of accounts whose group could not be
	// fetched. Non-empty means the sync partially succeeded.
	FailedAccounts []string `json:"failed_accounts,omitempty"`

	// NeedsReauth lists display names of accounts whose credential must be
	// reconnected, as opposed to a transient fetch failure.
	NeedsReauth []string `json:"needs_reauth,omitempty"`
}

// Partial reports whether some account groups failed while others succeeded.
func (o *SyncOutcome) Partial() bool {
	return len(o.FailedAccounts) > 0 || len(o.NeedsReauth) > 0
}
