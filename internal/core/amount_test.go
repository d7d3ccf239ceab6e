package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "dot separator", input: "12.34", want: "12.34"},
		{name: "comma separator", input: "12,34", want: "12.34"},
		{name: "negative", input: "-45.30", want: "-45.3"},
		{name: "negative comma", input: "-45,30", want: "-45.3"},
		{name: "integer", input: "100", want: "100"},
		{name: "explicit plus", input: "+7.5", want: "7.5"},
		{name: "surrounding spaces", input: "  9,99 ", want: "9.99"},
		{name: "empty", input: "", wantErr: true},
		{name: "text", input: "abc", wantErr: true},
		{name: "double separator", input: "1.2.3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAmount(%q) expected error, got %s", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) unexpected error: %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatAmountUnknownCurrency(t *testing.T) {
	got := FormatAmount(decimal.NewFromFloat(12.5), "ZZZ")
	if got != "12.50 ZZZ" {
		t.Errorf("FormatAmount fallback = %q, want %q", got, "12.50 ZZZ")
	}
}

func TestValidateCurrency(t *testing.T) {
	for _, code := range []string{"EUR", "USD", "GBP"} {
		if err := ValidateCurrency(code); err != nil {
			t.Errorf("ValidateCurrency(%q) unexpected error: %v", code, err)
		}
	}
	for _, code := range []string{"", "eu", "EURO", "eu1"} {
		if err := ValidateCurrency(code); err == nil {
			t.Errorf("ValidateCurrency(%q) expected error", code)
		}
	}
}
