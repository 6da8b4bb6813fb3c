// Package importer parses user-supplied transaction exports (bank CSV
// downloads) into import candidates for the matcher. Parsing is forgiving:
// a bad row is skipped with a warning, never fatal, because import sources
// are messy and a single malformed line must not block the batch.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nlozovan/budget-ledger/internal/domain"
	"github.com/nlozovan/budget-ledger/internal/logger"
)

// Column aliases seen across bank exports, lowercased.
var (
	dateColumns        = []string{"date", "transaction date", "posted date"}
	descriptionColumns = []string{"description", "name", "payee", "memo"}
	amountColumns      = []string{"amount", "transaction amount"}
	categoryColumns    = []string{"category"}
	merchantColumns    = []string{"merchant", "merchant name"}
)

// ParseCSV reads a bank export and returns the parseable rows as import
// candidates, plus one warning per skipped row.
func ParseCSV(ctx context.Context, r io.Reader) ([]domain.ImportCandidate, []string, error) {
	log := logger.FromContext(ctx)

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("ParseCSV: reading header: %w", err)
	}

	cols, err := mapColumns(headers)
	if err != nil {
		return nil, nil, err
	}

	var candidates []domain.ImportCandidate
	var warnings []string
	rowNum := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}

		cand, err := parseRow(record, cols)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		candidates = append(candidates, cand)
	}

	if len(warnings) > 0 {
		log.Warn().
			Int("skipped", len(warnings)).
			Int("parsed", len(candidates)).
			Msg("Some import rows could not be parsed")
	}

	return candidates, warnings, nil
}

// columnMap holds resolved column indices; -1 means absent.
type columnMap struct {
	date        int
	description int
	amount      int
	category    int
	merchant    int
}

func mapColumns(headers []string) (columnMap, error) {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}

	find := func(aliases []string) int {
		for _, a := range aliases {
			if i, ok := index[a]; ok {
				return i
			}
		}
		return -1
	}

	cols := columnMap{
		date:        find(dateColumns),
		description: find(descriptionColumns),
		amount:      find(amountColumns),
		category:    find(categoryColumns),
		merchant:    find(merchantColumns),
	}

	if cols.date == -1 || cols.description == -1 || cols.amount == -1 {
		return cols, fmt.Errorf("ParseCSV: export must have date, description, and amount columns, got %v", headers)
	}
	return cols, nil
}

func parseRow(record []string, cols columnMap) (domain.ImportCandidate, error) {
	field := func(i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	date := field(cols.date)
	desc := field(cols.description)
	if date == "" || desc == "" {
		return domain.ImportCandidate{}, fmt.Errorf("empty date or description")
	}

	amount, err := ParseAmount(field(cols.amount))
	if err != nil {
		return domain.ImportCandidate{}, err
	}

	return domain.ImportCandidate{
		Date:         date,
		Description:  desc,
		Amount:       amount,
		CategoryHint: field(cols.category),
		MerchantHint: field(cols.merchant),
	}, nil
}

// ParseAmount parses an export amount string. Exports disagree on currency
// symbols, thousands separators, and how negatives are written; "(12.34)"
// means -12.34 in several bank formats.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "").Replace(s)

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if negative {
		amount = amount.Neg()
	}
	return amount, nil
}
