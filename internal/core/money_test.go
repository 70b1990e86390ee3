package core

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{".5", "0.5", true},
		{"7.", "7", true},
		{"1.005", "1.01", true}, // half-up rounding
		{"1.004", "1", true},
		{" 2.50 ", "2.5", true},
		{"-1", "", false},
		{"+1", "", false},
		{"0", "", false},
		{"0.004", "", false},
		{"abc", "", false},
		{"1e3", "", false},
		{"1.2.3", "", false},
		{"", "", false},
		{"10000000000000", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error, got %s", tc.in, got)
			}
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		amount   string
		currency string
		want     string
	}{
		{"1234.5", "USD", "$1,234.50"},
		{"0", "usd", "$0.00"},
		{"12.345", "USD", "$12.35"},
	}
	for _, tc := range cases {
		got := FormatAmount(decimal.RequireFromString(tc.amount), tc.currency)
		if got != tc.want {
			t.Fatalf("FormatAmount(%s, %s) = %q, want %q", tc.amount, tc.currency, got, tc.want)
		}
	}
}

func TestFormatAmountDefaultCurrency(t *testing.T) {
	inr := FormatAmount(decimal.NewFromInt(500), DefaultCurrency)
	if !strings.Contains(inr, "₹") || !strings.Contains(inr, "500.00") {
		t.Fatalf("unexpected INR rendering %q", inr)
	}
	if got := FormatAmount(decimal.NewFromInt(500), "not-a-currency"); got != inr {
		t.Fatalf("unknown currency should fall back to %q, got %q", inr, got)
	}
}

func TestIsKnownCurrency(t *testing.T) {
	if !IsKnownCurrency("inr") || !IsKnownCurrency("EUR") {
		t.Fatalf("expected INR and EUR to be known")
	}
	if IsKnownCurrency("XYZ1") {
		t.Fatalf("expected XYZ1 to be unknown")
	}
}
