package importer

import (
	"context"
	"strings"
	"testing"
)

func TestParseCSV(t *testing.T) {
	csvData := strings.Join([]string{
		"Date,Description,Amount,Category",
		"1/15/2025,STARBUCKS #4521 ID:998877,-4.50,Dining",
		`2025-01-16,"Whole Foods Market","$1,234.56",Groceries`,
		"1/17/2025,Refund - Return,(25.00),",
		"bad row with,too few columns",
		"1/18/2025,,10.00,",
	}, "\n")

	candidates, warnings, err := ParseCSV(context.Background(), strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}

	if len(candidates) != 3 {
		t.Fatalf("got %d candidates, want 3 (bad rows skipped)", len(candidates))
	}
	if len(warnings) != 2 {
		t.Errorf("got %d warnings, want 2", len(warnings))
	}

	if candidates[0].Description != "STARBUCKS #4521 ID:998877" {
		t.Errorf("description = %q", candidates[0].Description)
	}
	if candidates[0].Amount.String() != "-4.5" {
		t.Errorf("amount = %s, want -4.5", candidates[0].Amount)
	}
	if candidates[0].CategoryHint != "Dining" {
		t.Errorf("category hint = %q", candidates[0].CategoryHint)
	}

	if candidates[1].Amount.String() != "1234.56" {
		t.Errorf("thousands-separated amount = %s, want 1234.56", candidates[1].Amount)
	}
	if candidates[2].Amount.String() != "-25" {
		t.Errorf("parenthesized amount = %s, want -25", candidates[2].Amount)
	}
}

func TestParseCSV_ColumnAliases(t *testing.T) {
	csvData := strings.Join([]string{
		"Posted Date,Payee,Transaction Amount",
		"2025-02-01,Electric Co,120.00",
	}, "\n")

	candidates, _, err := ParseCSV(context.Background(), strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Description != "Electric Co" {
		t.Errorf("candidates = %+v", candidates)
	}
}

func TestParseCSV_MissingRequiredColumns(t *testing.T) {
	csvData := "Foo,Bar\n1,2\n"
	if _, _, err := ParseCSV(context.Background(), strings.NewReader(csvData)); err == nil {
		t.Error("expected error for export without required columns")
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"42.50", "42.5", false},
		{"-42.50", "-42.5", false},
		{"$1,234.56", "1234.56", false},
		{"(99.99)", "-99.99", false},
		{"€15.00", "15", false},
		{"", "", true},
		{"12.34.56", "", true},
	}

	for _, tt := range tests {
		got, err := ParseAmount(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAmount(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got.String() != tt.want {
			t.Errorf("ParseAmount(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}
