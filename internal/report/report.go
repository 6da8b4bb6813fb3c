// Package report projects reconciliation results into the shapes callers
// render: the sync API response and the import-preview UI payload. No state,
// no decisions; the interesting logic lives in syncer and match.
package report

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nlozovan/budget-ledger/internal/domain"
	"github.com/nlozovan/budget-ledger/internal/match"
)

// SyncReport is the caller-facing summary of one sync pass.
type SyncReport struct {
	Status   string `json:"status"` // "ok" or "partial"
	Added    int    `json:"added"`
	Modified int    `json:"modified"`
	Removed  int    `json:"removed"`

	// Warning is a human-readable note listing accounts that could not be
	// refreshed. Empty when Status is "ok".
	Warning string `json:"warning,omitempty"`

	// ReconnectAccounts lists accounts the user must relink.
	ReconnectAccounts []string `json:"reconnect_accounts,omitempty"`
}

// BuildSyncReport renders a SyncOutcome for API responses.
func BuildSyncReport(outcome *domain.SyncOutcome) SyncReport {
	r := SyncReport{
		Status:            "ok",
		Added:             outcome.Added,
		Modified:          outcome.Modified,
		Removed:           outcome.Removed,
		ReconnectAccounts: outcome.NeedsReauth,
	}

	if outcome.Partial() {
		r.Status = "partial"
		r.Warning = buildWarning(outcome)
	}

	return r
}

func buildWarning(outcome *domain.SyncOutcome) string {
	var parts []string
	if len(outcome.FailedAccounts) > 0 {
		parts = append(parts, fmt.Sprintf("could not refresh %s", strings.Join(outcome.FailedAccounts, ", ")))
	}
	if len(outcome.NeedsReauth) > 0 {
		parts = append(parts, fmt.Sprintf("%s must be reconnected", strings.Join(outcome.NeedsReauth, ", ")))
	}
	return strings.Join(parts, "; ")
}

// DuplicateEntry is one likely-duplicate row in the import preview.
type DuplicateEntry struct {
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	Date           string          `json:"date"`
	MatchedName    string          `json:"matched_name"`
	MatchedDate    string          `json:"matched_date"`
	Confidence     float64         `json:"confidence"`
	Reason         string          `json:"reason"`
	Classification string          `json:"classification"`
}

// ImportPreview summarizes a matched import batch for the review screen.
type ImportPreview struct {
	TotalCandidates  int `json:"total_candidates"`
	LikelyDuplicates int `json:"likely_duplicates"`
	NewTransactions  int `json:"new_transactions"`

	// ForReview counts potential matches: imported anyway, but flagged.
	ForReview int `json:"for_review"`

	Summary    match.Summary    `json:"summary"`
	Duplicates []DuplicateEntry `json:"duplicates,omitempty"`
}

// BuildImportPreview renders matcher output for the import-preview UI.
func BuildImportPreview(result match.MatchingResult, groups match.Groups, totalCandidates int) ImportPreview {
	preview := ImportPreview{
		TotalCandidates:  totalCandidates,
		LikelyDuplicates: len(groups.Duplicates),
		NewTransactions:  len(groups.NewTransactions),
		ForReview:        result.Summary.Potential,
		Summary:          result.Summary,
	}

	for _, dup := range groups.Duplicates {
		entry := DuplicateEntry{
			Description:    dup.Candidate.Description,
			Amount:         dup.Candidate.Amount,
			Date:           dup.Candidate.Date,
			Confidence:     dup.Confidence,
			Reason:         dup.Reason,
			Classification: string(dup.Classification),
		}
		if dup.Transaction != nil {
			entry.MatchedName = dup.Transaction.EffectiveName()
			entry.MatchedDate = dup.Transaction.Date.Format("2006-01-02")
		}
		preview.Duplicates = append(preview.Duplicates, entry)
	}

	return preview
}
