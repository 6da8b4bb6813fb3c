// Package match finds the best existing ledger transaction for each record of
// a bulk import. Imports carry no identifier shared with the ledger, so
// candidates are paired by amount, date proximity, and description
// similarity, then classified by confidence.
package match

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nlozovan/budget-ledger/internal/domain"
)

// Classification is the coarse confidence bucket of a match.
type Classification string

const (
	// ClassExact means the normalized descriptions agree (similarity >= 0.8).
	ClassExact Classification = "exact"
	// ClassHigh means strong word overlap (similarity >= 0.4).
	ClassHigh Classification = "high"
	// ClassPotential means some overlap; surfaced for manual review, never
	// auto-skipped.
	ClassPotential Classification = "potential"
	// ClassNone means no eligible ledger transaction was found.
	ClassNone Classification = "none"
)

// Options are the matcher tunables.
type Options struct {
	// DateWindowDays is the maximum calendar-day distance, in either
	// direction, between a candidate and a ledger transaction.
	DateWindowDays int

	// AmountTolerance is the maximum absolute difference between the
	// absolute amounts, in currency units.
	AmountTolerance decimal.Decimal

	// SimilarityFloor is the exclusive lower bound a description similarity
	// must clear for a pair to be recorded at all.
	SimilarityFloor float64
}

// DefaultOptions returns the production tunables: 3-day window, 0.01 currency
// units of amount tolerance, any nonzero similarity recorded.
func DefaultOptions() Options {
	return Options{
		DateWindowDays:  3,
		AmountTolerance: decimal.NewFromFloat(0.01),
		SimilarityFloor: 0,
	}
}

// Result pairs one import candidate with its best ledger transaction.
type Result struct {
	// CandidateIndex is the candidate's position in the FindMatches input.
	CandidateIndex int

	Candidate domain.ImportCandidate

	// Transaction is the retained best match; nil when Classification is
	// ClassNone.
	Transaction *domain.Transaction

	// Confidence is in [0,1].
	Confidence float64

	// Reason is a human-readable explanation of the pairing.
	Reason string

	Classification Classification
}

// Summary aggregates classifications for UI summarization.
type Summary struct {
	Exact     int `json:"exact"`
	High      int `json:"high"`
	Potential int `json:"potential"`
	None      int `json:"none"`
}

// MatchingResult is the matcher output for one import batch.
type MatchingResult struct {
	// Matches holds one Result per candidate that matched at all, the
	// highest-confidence pairing only.
	Matches []Result

	Summary Summary
}

// Groups buckets an import batch for the caller's import decision.
type Groups struct {
	// Duplicates are candidates whose retained match is exact or high
	// confidence; eligible for automatic skip during import.
	Duplicates []Result

	// NewTransactions are all remaining candidates, including those with only
	// a potential match. Favoring import over silent loss is deliberate.
	NewTransactions []domain.ImportCandidate
}

// FindMatches scores every import candidate against the ledger and retains
// the best eligible pairing per candidate. Removed ledger rows are never
// considered. Candidates with unparseable dates simply produce no match; a
// malformed row must not abort the batch.
func FindMatches(candidates []domain.ImportCandidate, ledger []domain.Transaction, opts Options) MatchingResult {
	if opts.DateWindowDays == 0 && opts.AmountTolerance.IsZero() && opts.SimilarityFloor == 0 {
		opts = DefaultOptions()
	}

	result := MatchingResult{}

	for i := range candidates {
		best, found := bestMatch(&candidates[i], ledger, opts)
		if !found {
			result.Summary.None++
			continue
		}

		best.CandidateIndex = i
		result.Matches = append(result.Matches, best)

		switch best.Classification {
		case ClassExact:
			result.Summary.Exact++
		case ClassHigh:
			result.Summary.High++
		case ClassPotential:
			result.Summary.Potential++
		}
	}

	return result
}

// bestMatch evaluates one candidate against every eligible ledger row and
// returns the top pairing by confidence, then by date proximity.
func bestMatch(cand *domain.ImportCandidate, ledger []domain.Transaction, opts Options) (Result, bool) {
	candDate, ok := ParseImportDate(cand.Date)
	if !ok {
		return Result{}, false
	}
	candAmount := cand.Amount.Abs()

	type scored struct {
		result  Result
		dayDiff int
	}
	var pairs []scored

	for i := range ledger {
		txn := &ledger[i]
		if txn.Status == domain.StatusRemoved {
			continue
		}

		// Absolute values: sign conventions differ between import sources
		// and the ledger.
		diff := candAmount.Sub(decimal.NewFromFloat(txn.Amount).Abs()).Abs()
		if diff.GreaterThan(opts.AmountTolerance) {
			continue
		}

		days := dayDiff(candDate, txn.Date)
		if days > opts.DateWindowDays {
			continue
		}

		sim, reason := DescriptionSimilarity(cand.Description, txn.Name)
		if sim <= opts.SimilarityFloor {
			continue
		}

		pairs = append(pairs, scored{
			result: Result{
				Candidate:      *cand,
				Transaction:    txn,
				Confidence:     sim,
				Reason:         fmt.Sprintf("%s, %s", reason, describeDayDiff(days)),
				Classification: classify(sim),
			},
			dayDiff: days,
		})
	}

	if len(pairs) == 0 {
		return Result{}, false
	}

	sort.SliceStable(pairs, func(a, b int) bool {
		if pairs[a].result.Confidence != pairs[b].result.Confidence {
			return pairs[a].result.Confidence > pairs[b].result.Confidence
		}
		return pairs[a].dayDiff < pairs[b].dayDiff
	})

	return pairs[0].result, true
}

// GroupByDuplicates splits an import batch into likely duplicates and
// genuinely new transactions. Exact and high matches are duplicates;
// everything else imports.
func GroupByDuplicates(result MatchingResult, candidates []domain.ImportCandidate) Groups {
	duplicateIdx := make(map[int]bool)

	groups := Groups{}
	for _, m := range result.Matches {
		if m.Classification == ClassExact || m.Classification == ClassHigh {
			groups.Duplicates = append(groups.Duplicates, m)
			duplicateIdx[m.CandidateIndex] = true
		}
	}

	for i := range candidates {
		if !duplicateIdx[i] {
			groups.NewTransactions = append(groups.NewTransactions, candidates[i])
		}
	}

	return groups
}

func classify(similarity float64) Classification {
	switch {
	case similarity >= 0.8:
		return ClassExact
	case similarity >= 0.4:
		return ClassHigh
	case similarity > 0:
		return ClassPotential
	default:
		return ClassNone
	}
}

// dayDiff returns the absolute distance in calendar days.
func dayDiff(a, b time.Time) int {
	a = time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	b = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)

	diff := int(a.Sub(b) / (24 * time.Hour))
	if diff < 0 {
		diff = -diff
	}
	return diff
}

func describeDayDiff(days int) string {
	if days == 0 {
		return "same day"
	}
	if days == 1 {
		return "1 day apart"
	}
	return fmt.Sprintf("%d days apart", days)
}

// importDateFormats are the source date layouts accepted from bank exports.
var importDateFormats = []string{
	"1/2/2006",   // M/D/YYYY
	"2006-01-02", // ISO
	"2006/01/02",
	"1-2-2006",
	"01/02/2006",
}

// ParseImportDate normalizes a raw source date string to calendar-day
// granularity. The second return is false when no known layout matches.
func ParseImportDate(raw string) (time.Time, bool) {
	for _, layout := range importDateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
