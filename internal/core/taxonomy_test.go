package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalizeCategoryForTotal(t *testing.T) {
	tests := []struct {
		name  string
		cat   string
		total string
		want  string
		ok    bool
	}{
		{name: "expense by name", cat: "Nutrition", total: "-45.30", want: "Nutrition", ok: true},
		{name: "expense by id", cat: "nutrition", total: "-45.30", want: "Nutrition", ok: true},
		{name: "expense case-insensitive", cat: "NUTRITION", total: "-1", want: "Nutrition", ok: true},
		{name: "income by name", cat: "Salary", total: "2500", want: "Salary", ok: true},
		{name: "income category on expense", cat: "Salary", total: "-10", ok: false},
		{name: "expense category on income", cat: "Nutrition", total: "10", ok: false},
		{name: "unknown", cat: "Spaceships", total: "-10", ok: false},
		{name: "empty", cat: "", total: "-10", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total := decimal.RequireFromString(tt.total)
			got, ok := NormalizeCategoryForTotal(tt.cat, total)
			if ok != tt.ok {
				t.Fatalf("NormalizeCategoryForTotal(%q, %s) ok = %v, want %v", tt.cat, tt.total, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("NormalizeCategoryForTotal(%q, %s) = %q, want %q", tt.cat, tt.total, got, tt.want)
			}
		})
	}
}

func TestTaxonomiesAreDisjointByName(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range ExpenseCategories {
		seen[c.Name] = true
	}
	for _, c := range IncomeCategories {
		if seen[c.Name] {
			t.Errorf("category name %q appears in both taxonomies", c.Name)
		}
	}
}

func TestSuggestCategory(t *testing.T) {
	c := Candidate{
		Merchant: "REWE Markt GmbH",
		Total:    decimal.RequireFromString("-45.30"),
	}
	got, ok := SuggestCategory(c)
	if !ok || got != "Nutrition" {
		t.Fatalf("SuggestCategory(REWE) = %q, %v; want Nutrition", got, ok)
	}

	income := Candidate{
		Merchant: "ACME payroll",
		Total:    decimal.RequireFromString("2500"),
	}
	got, ok = SuggestCategory(income)
	if !ok || got != "Salary" {
		t.Fatalf("SuggestCategory(payroll) = %q, %v; want Salary", got, ok)
	}

	blank := Candidate{Total: decimal.RequireFromString("-1")}
	if _, ok := SuggestCategory(blank); ok {
		t.Error("SuggestCategory with no text should not match")
	}
}

func TestTransactionValidate(t *testing.T) {
	tx := Transaction{Date: "2024-03-15", Currency: "EUR"}
	if err := tx.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if err := (Transaction{Date: "15.03.2024", Currency: "EUR"}).Validate(); err == nil {
		t.Error("Validate() should reject non ISO dates")
	}
	if err := (Transaction{Date: "2024-03-15", Currency: "eur"}).Validate(); err == nil {
		t.Error("Validate() should reject lowercase currency")
	}
}

func TestValidAccountName(t *testing.T) {
	for _, name := range []string{"Main", "N26 Spaces", "Кошелёк"} {
		if !ValidAccountName(name) {
			t.Errorf("ValidAccountName(%q) = false, want true", name)
		}
	}
	for _, name := range []string{"", "  ", "a/b", "x<y"} {
		if ValidAccountName(name) {
			t.Errorf("ValidAccountName(%q) = true, want false", name)
		}
	}
}
